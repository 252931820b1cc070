package riskmatrix

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

//go:embed offline_matrix.yaml
var offlineMatrix []byte

// Fetcher retrieves the current matrix from the backend.
// internal/backend.Client satisfies this.
type Fetcher interface {
	RiskMatrix(ctx context.Context) (*Matrix, error)
}

// Loader resolves the effective risk matrix: backend first, then the
// on-disk cache, then the bundled offline asset. Whatever the backend
// returns is cached for the next offline run.
type Loader struct {
	CachePath string
	Offline   bool
	Fetcher   Fetcher // nil when the backend is not configured
}

// Load returns the matrix to use for this run.
func (l *Loader) Load(ctx context.Context) (*Matrix, error) {
	if !l.Offline && l.Fetcher != nil {
		m, err := l.Fetcher.RiskMatrix(ctx)
		if err == nil {
			if verr := m.Validate(); verr != nil {
				return nil, fmt.Errorf("backend risk matrix invalid: %w", verr)
			}
			if cerr := l.cache(m); cerr != nil {
				slog.Warn("could not cache risk matrix", "path", l.CachePath, "error", cerr)
			}
			return m, nil
		}
		slog.Debug("risk matrix fetch failed, falling back to cache", "error", err)
	}

	if l.CachePath != "" {
		if m, err := loadFile(l.CachePath); err == nil {
			return m, nil
		} else if !os.IsNotExist(err) {
			slog.Warn("cached risk matrix unreadable, using bundled asset", "path", l.CachePath, "error", err)
		}
	}

	return Bundled()
}

// Pull fetches the matrix from the backend unconditionally and updates
// the cache. Unlike Load it does not fall back on failure.
func (l *Loader) Pull(ctx context.Context) (*Matrix, error) {
	if l.Fetcher == nil {
		return nil, fmt.Errorf("no backend configured")
	}
	m, err := l.Fetcher.RiskMatrix(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching risk matrix: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("backend risk matrix invalid: %w", err)
	}
	if err := l.cache(m); err != nil {
		return nil, fmt.Errorf("caching risk matrix: %w", err)
	}
	return m, nil
}

// Bundled parses the offline asset compiled into the binary.
func Bundled() (*Matrix, error) {
	var m Matrix
	if err := yaml.Unmarshal(offlineMatrix, &m); err != nil {
		return nil, fmt.Errorf("parsing bundled risk matrix: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("bundled risk matrix invalid: %w", err)
	}
	return &m, nil
}

func loadFile(path string) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Matrix
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing risk matrix %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("risk matrix %s invalid: %w", path, err)
	}
	return &m, nil
}

func (l *Loader) cache(m *Matrix) error {
	if l.CachePath == "" {
		return nil
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.CachePath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(l.CachePath, data, 0o644)
}
