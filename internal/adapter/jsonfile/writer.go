package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/sipsa-price-etl/internal/domain"
)

// Writer stores each batch as an indented JSON array in its own file.
// It implements pipeline.Loader.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at dir. The directory is created on first
// write.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// Path returns the file a batch with the given name is written to.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, name+".json")
}

// Load writes the batch to <dir>/<name>.json and returns that path. The file
// is replaced atomically, so readers never see a partial document. An empty
// batch is written as [].
func (w *Writer) Load(ctx context.Context, b domain.Batch) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if b.Name == "" || b.Name != filepath.Base(b.Name) {
		return "", fmt.Errorf("invalid batch name %q", b.Name)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	dest := w.Path(b.Name)
	if err := writeAtomic(dest, b.Records); err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	w.logger.Info("output written", "path", dest, "records", len(b.Records))
	return dest, nil
}

func writeAtomic(dest string, records []domain.Record) error {
	if records == nil {
		records = []domain.Record{}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*.json")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, 0o644)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
