package gen

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kinmemodoki/handa/internal/synth"
)

// Writer renders synthesized files and writes them beside their directive
// files. One Writer covers one generation round so competing outputs for
// the same path surface as an error instead of a silent overwrite.
type Writer struct {
	suffix  string
	written map[string]string
}

// NewWriter returns a Writer appending suffix (such as "_handa") to each
// directive file's base name.
func NewWriter(suffix string) *Writer {
	return &Writer{
		suffix:  suffix,
		written: make(map[string]string),
	}
}

// OutputPath is the generated-file path for a directive file.
func (w *Writer) OutputPath(src string) string {
	ext := filepath.Ext(src)
	return strings.TrimSuffix(src, ext) + w.suffix + ext
}

// Write renders file and writes it to the output path derived from src.
func (w *Writer) Write(src string, file *synth.File) error {
	out := w.OutputPath(src)
	if prev, ok := w.written[out]; ok {
		return fmt.Errorf("output %s already generated for %s; conflicting directive at %s", out, prev, file.Origin)
	}

	data, err := Render(file)
	if err != nil {
		return fmt.Errorf("render %s: %w", out, err)
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	w.written[out] = file.Origin.String()
	slog.Debug("wrote generated file", "path", out, "bytes", len(data))
	return nil
}
