package report

import (
	"io"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/urlrisk/internal/model"
)

// Writer renders scan results to its destination.
type Writer interface {
	// Write renders one result and returns the number of bytes written.
	Write(result *model.ScanResult) (int, error)

	// WriteBatch renders the results of a batch scan, in input order.
	WriteBatch(results []*model.ScanResult) (int, error)
}

// MultiWriter writes every result to all of its writers.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders result with every writer. It stops at the first error.
func (m *MultiWriter) Write(result *model.ScanResult) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.Write(result) })
}

// WriteBatch renders results with every writer. It stops at the first error.
func (m *MultiWriter) WriteBatch(results []*model.ScanResult) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteBatch(results) })
}

func (m *MultiWriter) each(write func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := write(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// dateLayout formats scan dates in text and markdown reports.
const dateLayout = "2006-01-02 15:04:05 MST"

var titleCaser = cases.Title(language.English)

// levelLabel returns the display name of a threat level, e.g. "Suspicious".
func levelLabel(level model.ThreatLevel) string {
	if level == "" {
		return "Unknown"
	}
	return titleCaser.String(string(level))
}

// severityOrder lists severities from most to least severe.
var severityOrder = []model.Severity{
	model.SeverityHigh,
	model.SeverityMedium,
	model.SeverityLow,
}

// findingsBySeverity groups findings, keeping their order within a group.
func findingsBySeverity(findings []model.Finding) map[model.Severity][]model.Finding {
	groups := make(map[model.Severity][]model.Finding)
	for _, f := range findings {
		groups[f.Severity] = append(groups[f.Severity], f)
	}
	return groups
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
