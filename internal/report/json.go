package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/urlrisk/internal/model"
)

// JSONWriter writes results as JSON: one ScanResult document per Write,
// an array of them per WriteBatch.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string

	omitScreenshot bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithoutScreenshot drops the base64 screenshot from the output.
func WithoutScreenshot() JSONWriterOption {
	return func(w *JSONWriter) {
		w.omitScreenshot = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs one result.
func (w *JSONWriter) Write(result *model.ScanResult) (int, error) {
	return w.writeJSON(w.prepare(result))
}

// WriteBatch outputs the results as a JSON array.
func (w *JSONWriter) WriteBatch(results []*model.ScanResult) (int, error) {
	out := make([]*model.ScanResult, 0, len(results))
	for _, r := range results {
		out = append(out, w.prepare(r))
	}
	return w.writeJSON(out)
}

func (w *JSONWriter) prepare(result *model.ScanResult) *model.ScanResult {
	if !w.omitScreenshot || result == nil || result.Screenshot == nil {
		return result
	}
	// The caller's result may be shared with the cache.
	c := *result
	c.Screenshot = nil
	return &c
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
