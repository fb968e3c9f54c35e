package tessellate_test

import (
	"context"
	"testing"
	"time"

	"github.com/chazu/pipeworks/pkg/assembly"
	"github.com/chazu/pipeworks/pkg/component"
	"github.com/chazu/pipeworks/pkg/csg"
	"github.com/chazu/pipeworks/pkg/kernel"
	"github.com/chazu/pipeworks/pkg/kernel/sdfx"
	"github.com/chazu/pipeworks/pkg/tessellate"
	"gonum.org/v1/gonum/spatial/r3"
)

// newKernel returns a coarse sdfx kernel for testing.
func newKernel() kernel.Kernel {
	return sdfx.New(sdfx.WithCells(24))
}

func newAssembly(t *testing.T, k kernel.Kernel) *assembly.Assembly {
	t.Helper()
	a := assembly.New(assembly.Options{
		Kernel:     k,
		Resolution: csg.Resolution{CellSize: 0.02, Min: 16, Max: 32},
	})
	t.Cleanup(a.Close)
	return a
}

func addPipe(t *testing.T, a *assembly.Assembly, name string, length float64) assembly.ID {
	t.Helper()
	p, err := component.NewPipe(component.PipeParams{Diameter: 0.1, Thickness: 0.004, Length: length}, a.Catalog())
	if err != nil {
		t.Fatalf("NewPipe: %v", err)
	}
	id, err := a.Add(name, p)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return id
}

func TestEmptyAssembly(t *testing.T) {
	k := newKernel()
	meshes, err := tessellate.Tessellate(context.Background(), newAssembly(t, k), k, tessellate.Options{})
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(meshes) != 0 {
		t.Errorf("expected no meshes, got %d", len(meshes))
	}
}

func TestNilAssembly(t *testing.T) {
	meshes, err := tessellate.Tessellate(context.Background(), nil, newKernel(), tessellate.Options{})
	if err != nil || meshes != nil {
		t.Fatalf("expected nil, nil; got %v, %v", meshes, err)
	}
}

func TestSinglePipe(t *testing.T) {
	k := newKernel()
	a := newAssembly(t, k)
	addPipe(t, a, "feed", 0.5)
	if err := a.SetColor("feed", "#aabbcc"); err != nil {
		t.Fatal(err)
	}

	meshes, err := tessellate.Tessellate(context.Background(), a, k, tessellate.Options{})
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(meshes))
	}

	m := meshes[0]
	if m.IsEmpty() || m.TriangleCount() == 0 {
		t.Fatal("mesh should not be empty")
	}
	if m.Component != "feed" {
		t.Errorf("expected Component %q, got %q", "feed", m.Component)
	}
	if m.Color != "#aabbcc" {
		t.Errorf("expected Color %q, got %q", "#aabbcc", m.Color)
	}

	// Flanges overhang the 0.1 pipe.
	min, max := m.Bounds()
	if max[0]-min[0] < 0.11 {
		t.Errorf("expected flanges wider than the pipe, got width %g", max[0]-min[0])
	}
	if max[2] > 0.25+0.01 || min[2] < -0.25-0.01 {
		t.Errorf("mesh runs past the pipe ends: z in [%g, %g]", min[2], max[2])
	}
}

func TestNoFlanges(t *testing.T) {
	k := newKernel()
	a := newAssembly(t, k)
	addPipe(t, a, "feed", 0.5)

	meshes, err := tessellate.Tessellate(context.Background(), a, k, tessellate.Options{NoFlanges: true})
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	min, max := meshes[0].Bounds()
	if w := max[0] - min[0]; w > 0.1+0.01 {
		t.Errorf("expected bare pipe width about 0.1, got %g", w)
	}
}

func TestMeshesAreInWorldSpace(t *testing.T) {
	k := newKernel()
	a := newAssembly(t, k)
	first := addPipe(t, a, "first", 0.5)
	second := addPipe(t, a, "second", 0.5)
	if _, err := a.Connect(
		assembly.PortRef{Component: second, Port: "in"},
		assembly.PortRef{Component: first, Port: "out"},
	); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := a.Move(first, r3.Vec{X: 1}); err != nil {
		t.Fatalf("Move: %v", err)
	}

	meshes, err := tessellate.Tessellate(context.Background(), a, k, tessellate.Options{Limit: 1})
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(meshes))
	}
	if meshes[0].Component != "first" || meshes[1].Component != "second" {
		t.Errorf("meshes out of order: %q, %q", meshes[0].Component, meshes[1].Component)
	}

	min, max := meshes[1].Bounds()
	if cx := (min[0] + max[0]) / 2; cx < 0.99 || cx > 1.01 {
		t.Errorf("second pipe should follow the move to x=1, centre x=%g", cx)
	}
	if cz := (min[2] + max[2]) / 2; cz < 0.49 || cz > 0.51 {
		t.Errorf("second pipe should sit after the first, centre z=%g", cz)
	}
}

func TestUsesBackgroundMesh(t *testing.T) {
	k := newKernel()
	a := newAssembly(t, k)
	tee, err := component.NewTee(component.TeeParams{Diameter: 0.1, Branch: 0.1, Thickness: 0.004}, a.Catalog())
	if err != nil {
		t.Fatalf("NewTee: %v", err)
	}
	id, err := a.Add("tee", tee)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	v, _ := a.Get(id)
	if v.Mesh == nil {
		t.Fatal("expected background mesh")
	}

	meshes, err := tessellate.Tessellate(ctx, a, k, tessellate.Options{NoFlanges: true})
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(meshes))
	}
	if meshes[0].VertexCount() != v.Mesh.VertexCount() {
		t.Errorf("expected cached mesh with %d vertices, got %d", v.Mesh.VertexCount(), meshes[0].VertexCount())
	}
}

func TestCancelledContext(t *testing.T) {
	k := newKernel()
	a := newAssembly(t, k)
	addPipe(t, a, "feed", 0.5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tessellate.Tessellate(ctx, a, k, tessellate.Options{}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestMerge(t *testing.T) {
	a := &kernel.Mesh{Vertices: make([]float32, 9), Normals: make([]float32, 9), Indices: []uint32{0, 1, 2}}
	b := &kernel.Mesh{Vertices: make([]float32, 9), Normals: make([]float32, 9), Indices: []uint32{0, 1, 2}}
	m := tessellate.Merge([]*kernel.Mesh{a, b})
	if m.TriangleCount() != 2 || m.VertexCount() != 6 {
		t.Fatalf("got %d triangles, %d vertices", m.TriangleCount(), m.VertexCount())
	}
	if m.Indices[3] != 3 {
		t.Errorf("second mesh indices not offset: %v", m.Indices)
	}
}
