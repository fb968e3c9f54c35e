package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chazu/pipeworks/pkg/assembly"
)

func newInspectCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect SCRIPT",
		Short: "List components, ports, world anchors, links and validation findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := p.evaluate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			findings := a.Validate()
			if err := report(cmd.OutOrStdout(), a, findings); err != nil {
				return err
			}
			if n := countErrors(findings); n > 0 {
				return fmt.Errorf("%d validation error(s)", n)
			}
			return nil
		},
	}
}

func countErrors(findings []assembly.ValidationError) int {
	n := 0
	for _, v := range findings {
		if v.Severity == assembly.SeverityError {
			n++
		}
	}
	return n
}

// report writes one row per port, then the findings.
func report(w io.Writer, a *assembly.Assembly, findings []assembly.ValidationError) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tKIND\tPORT\tTYPE\tDIAMETER\tPOSITION\tDIRECTION\tLINK")
	for _, v := range a.Views() {
		for _, port := range v.Component.Ports() {
			ref := assembly.PortRef{Component: v.ID, Port: port.Name}
			at, err := a.Anchor(ref)
			if err != nil {
				return err
			}
			link := "-"
			if peer, ok := a.Peer(ref); ok {
				link = peer.String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.4g\t(%.4f, %.4f, %.4f)\t(%.3f, %.3f, %.3f)\t%s\n",
				v.ID, v.Component.Kind(), port.Name, port.Type, port.Diameter,
				at.Position.X, at.Position.Y, at.Position.Z,
				at.Direction.X, at.Direction.Y, at.Direction.Z,
				link)
		}
		if len(v.Component.Ports()) == 0 {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t-\t-\n", v.ID, v.Component.Kind())
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d component(s), %d link(s)\n", a.Len(), len(a.Links()))
	for _, v := range findings {
		fmt.Fprintln(w, v.Error())
	}
	for _, v := range a.Views() {
		if v.Err != nil {
			fmt.Fprintf(w, "[%s] component %s: %v\n", assembly.SeverityWarning, v.ID, v.Err)
		}
	}
	return nil
}
