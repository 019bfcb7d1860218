// Package file reads a previously downloaded GLOBE API payload from disk.
package file

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	"github.com/couchcryptid/globe-observer-qa/internal/observability"
	"github.com/spf13/afero"
)

// Source serves one GeoJSON file as the payload of every window.
type Source struct {
	fs      afero.Fs
	path    string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewSource creates a Source reading path from fs.
func NewSource(fs afero.Fs, path string, metrics *observability.Metrics, logger *slog.Logger) *Source {
	return &Source{fs: fs, path: path, metrics: metrics, logger: logger}
}

// Name identifies the source in logs and metrics.
func (s *Source) Name() string { return "file" }

// Fetch reads the file. The file already holds one fetch window, so w is not
// used to select data.
func (s *Source) Fetch(ctx context.Context, _ domain.Window) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		s.metrics.FetchRequests.WithLabelValues(s.Name(), "error").Inc()
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	s.metrics.FetchRequests.WithLabelValues(s.Name(), "success").Inc()
	s.logger.Info("read payload file", "path", s.path, "bytes", len(data))
	return data, nil
}

// Save writes a payload so it can be replayed later with a file Source.
func Save(fs afero.Fs, path string, data []byte) error {
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
