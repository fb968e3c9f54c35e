package backend

import (
	"testing"

	"github.com/chazu/pipeworks/pkg/kernel"
	"github.com/chazu/pipeworks/pkg/kernel/sdfx"
)

func TestNewSDFX(t *testing.T) {
	for _, name := range []string{"", SDFX} {
		k, err := New(name, 32)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		s, ok := k.(*sdfx.SdfxKernel)
		if !ok {
			t.Fatalf("New(%q) = %T, want *sdfx.SdfxKernel", name, k)
		}
		if s.Cells() != 32 {
			t.Errorf("cells = %d, want 32", s.Cells())
		}
	}
}

func TestNewManifold(t *testing.T) {
	k, err := New(Manifold, 0)
	// Untagged builds get the stub, which reports itself unavailable.
	if err != nil {
		if k != nil {
			t.Errorf("expected nil kernel with error, got %T", k)
		}
		return
	}
	var _ kernel.Kernel = k
}

func TestNewUnknown(t *testing.T) {
	if _, err := New("opencascade", 0); err == nil {
		t.Fatal("expected error for unknown kernel")
	}
}
