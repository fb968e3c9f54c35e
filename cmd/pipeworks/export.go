package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newExportCmd(f *rootFlags) *cobra.Command {
	var (
		out       string
		noFlanges bool
	)
	cmd := &cobra.Command{
		Use:   "export SCRIPT",
		Short: "Evaluate a script and write its geometry as binary STL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if out == "" {
				out = stlName(args[0])
			}
			return p.export(cmd.Context(), args[0], out, noFlanges)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "STL file to write (default: SCRIPT with .stl extension)")
	cmd.Flags().BoolVar(&noFlanges, "no-flanges", false, "leave flange rings out")
	return cmd
}

// stlName swaps the script's extension for .stl.
func stlName(script string) string {
	return strings.TrimSuffix(script, filepath.Ext(script)) + ".stl"
}
