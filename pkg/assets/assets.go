// Package assets loads externally authored meshes for catalog-backed
// fittings such as valves and pumps. A model is a JSON kernel.Mesh
// addressed by URL: http(s)://, file:// or a path relative to the loader's
// base directory.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/pipeworks/pkg/geom"
	"github.com/chazu/pipeworks/pkg/kernel"
	"github.com/chazu/pipeworks/pkg/worker"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrLoad marks every failure to fetch or parse a model.
var ErrLoad = errors.New("assets: load failed")

// maxModelBytes bounds a single model download.
const maxModelBytes = 64 << 20

// Loader fetches raw model bytes.
type Loader interface {
	Load(ctx context.Context, url string) ([]byte, error)
}

// FileLoader reads models from disk and over HTTP.
type FileLoader struct {
	baseDir string
	client  *http.Client
}

// NewLoader returns a loader resolving relative paths against baseDir. A
// nil client means http.DefaultClient.
func NewLoader(baseDir string, client *http.Client) *FileLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &FileLoader{baseDir: baseDir, client: client}
}

// Load returns the bytes behind ref.
func (l *FileLoader) Load(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return l.fetch(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoad, ref, err)
		}
		return l.read(u.Path)
	default:
		path := ref
		if !filepath.IsAbs(path) {
			path = filepath.Join(l.baseDir, path)
		}
		return l.read(path)
	}
}

func (l *FileLoader) read(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	return b, nil
}

func (l *FileLoader) fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, ref, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrLoad, ref, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxModelBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, ref, err)
	}
	return b, nil
}

// LoadMesh fetches and decodes a model, scaled uniformly.
func LoadMesh(ctx context.Context, l Loader, ref string, scale float64) (*kernel.Mesh, error) {
	b, err := l.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	m, err := kernel.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, ref, err)
	}
	if m.IsEmpty() {
		return nil, fmt.Errorf("%w: %s: empty mesh", ErrLoad, ref)
	}
	if scale > 0 && scale != 1 {
		pose := geom.Identity()
		pose.Scale = r3.Vec{X: scale, Y: scale, Z: scale}
		m = m.Transformed(pose)
	}
	return m, nil
}

// Task packages a model load as a worker task returning the encoded,
// scaled mesh.
func Task(l Loader, ref string, scale float64) worker.Task {
	return func(ctx context.Context) ([]byte, error) {
		m, err := LoadMesh(ctx, l, ref, scale)
		if err != nil {
			return nil, err
		}
		return kernel.Encode(m)
	}
}
