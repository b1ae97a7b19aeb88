package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/urlrisk/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds finding descriptions, network details and links.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs one result.
func (w *SimpleWriter) Write(result *model.ScanResult) (int, error) {
	var sb strings.Builder
	w.writeResult(&sb, result)
	return io.WriteString(w.output, sb.String())
}

// WriteBatch outputs every result followed by a one-line-per-URL summary.
func (w *SimpleWriter) WriteBatch(results []*model.ScanResult) (int, error) {
	var sb strings.Builder
	for _, r := range results {
		w.writeResult(&sb, r)
	}

	section(&sb, "BATCH SUMMARY")
	for _, r := range results {
		fmt.Fprintf(&sb, "  %-10s %2d/10  %s\n", strings.ToUpper(string(r.ThreatLevel)), r.ThreatScore, r.URL)
	}
	sb.WriteString("\n")
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeResult(sb *strings.Builder, r *model.ScanResult) {
	w.writeHeader(sb, r)
	w.writeVerdict(sb, r)
	if r.Degraded() {
		sb.WriteString(strings.Repeat("=", ruleWidth))
		sb.WriteString("\n\n")
		return
	}
	w.writeDomain(sb, r)
	w.writeSecurity(sb, r)
	w.writeFindings(sb, r.Security.Vulnerabilities)
	w.writePage(sb, r)
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, r *model.ScanResult) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                          URL RISK REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "URL:            %s\n", r.URL)
	if r.FinalURL != "" && r.FinalURL != r.URL {
		fmt.Fprintf(sb, "Final URL:      %s\n", r.FinalURL)
	}
	fmt.Fprintf(sb, "Scan Date:      %s\n", r.ScanDate.Format(dateLayout))
	if r.Degraded() {
		fmt.Fprintf(sb, "Status:         FAILED - %s\n", r.Error)
	} else {
		sb.WriteString("Status:         Complete\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeVerdict(sb *strings.Builder, r *model.ScanResult) {
	section(sb, "VERDICT")

	fmt.Fprintf(sb, "  Threat Level:   %s\n", strings.ToUpper(string(r.ThreatLevel)))
	fmt.Fprintf(sb, "  Threat Score:   %d/%d\n", r.ThreatScore, model.MaxThreatScore)
	fmt.Fprintf(sb, "  Security Score: %d/%d\n", r.Security.Score, model.MaxSecurityScore)
	fmt.Fprintf(sb, "  Confidence:     %d%%\n\n", r.Confidence)

	if len(r.Indicators) > 0 {
		sb.WriteString("  Indicators:\n")
		for _, ind := range r.Indicators {
			fmt.Fprintf(sb, "    [!] %s\n", ind)
		}
		sb.WriteString("\n")
	}
	if len(r.Recommendations) > 0 {
		sb.WriteString("  Recommendations:\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(sb, "    [>] %s\n", rec)
		}
		sb.WriteString("\n")
	}
}

func (w *SimpleWriter) writeDomain(sb *strings.Builder, r *model.ScanResult) {
	section(sb, "DOMAIN")

	d := r.Domain
	fmt.Fprintf(sb, "  Name:      %s\n", d.Name)
	fmt.Fprintf(sb, "  IP:        %s\n", optional(d.IP))
	fmt.Fprintf(sb, "  Registrar: %s\n", optional(d.Registrar))
	age := "unknown"
	if d.AgeDays != nil {
		age = strconv.Itoa(*d.AgeDays) + " days"
	}
	fmt.Fprintf(sb, "  Age:       %s\n\n", age)
}

func optional(s *string) string {
	if s == nil || *s == "" {
		return "unknown"
	}
	return *s
}

func (w *SimpleWriter) writeSecurity(sb *strings.Builder, r *model.ScanResult) {
	section(sb, "SECURITY")

	s := r.Security
	valid := "INVALID"
	if s.SSL.Valid {
		valid = fmt.Sprintf("valid, %d days remaining", s.SSL.DaysRemaining)
	}
	fmt.Fprintf(sb, "  TLS:            %s\n", valid)
	if s.SSL.Issuer != "" {
		fmt.Fprintf(sb, "  Issuer:         %s\n", s.SSL.Issuer)
	}
	if s.SSL.Protocol != "" {
		fmt.Fprintf(sb, "  Protocol:       %s %s\n", s.SSL.Protocol, s.SSL.Cipher)
	}
	fmt.Fprintf(sb, "  Headers:        %d present, %d missing, %d weak\n",
		len(s.HeadersAnalysis.Present), len(s.HeadersAnalysis.Missing), len(s.HeadersAnalysis.Weak))
	for _, h := range s.HeadersAnalysis.Missing {
		fmt.Fprintf(sb, "    [-] %s\n", h)
	}
	fmt.Fprintf(sb, "  Cookies:        %d total, %d secure, %d httpOnly, %d sameSite\n",
		s.Cookies.Total, s.Cookies.Secure, s.Cookies.HTTPOnly, s.Cookies.SameSite)
	fmt.Fprintf(sb, "  Mixed Content:  %d\n", s.MixedContent.Count)
	if w.verbose {
		for _, res := range s.MixedContent.Resources {
			fmt.Fprintf(sb, "    [-] %s\n", res)
		}
	}
	fmt.Fprintf(sb, "  Open Ports:     %s\n", joinInts(s.Ports.Open))
	if len(s.Ports.Weak) > 0 {
		fmt.Fprintf(sb, "  Weak Ports:     %s\n", joinInts(s.Ports.Weak))
	}
	sb.WriteString("\n")
}

func joinInts(values []int) string {
	if len(values) == 0 {
		return "none"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

func (w *SimpleWriter) writeFindings(sb *strings.Builder, findings []model.Finding) {
	if len(findings) == 0 {
		return
	}
	section(sb, "FINDINGS")

	groups := findingsBySeverity(findings)
	for _, sev := range severityOrder {
		for _, f := range groups[sev] {
			fmt.Fprintf(sb, "  [%s] %s\n", severityIndicator(sev), f.Title)
			if w.verbose && f.Description != "" {
				fmt.Fprintf(sb, "        %s\n", f.Description)
			}
		}
	}
	sb.WriteString("\n")
}

func severityIndicator(s model.Severity) string {
	switch s {
	case model.SeverityHigh:
		return "!!!"
	case model.SeverityMedium:
		return "!! "
	default:
		return "!  "
	}
}

func (w *SimpleWriter) writePage(sb *strings.Builder, r *model.ScanResult) {
	section(sb, "PAGE")

	p := r.Page
	fmt.Fprintf(sb, "  Title:          %s\n", orDash(p.Title))
	fmt.Fprintf(sb, "  Login Form:     %t\n", p.HasLoginForm)
	fmt.Fprintf(sb, "  Forms/Iframes:  %d/%d\n", p.Forms, p.Iframes)
	fmt.Fprintf(sb, "  Scripts:        %d\n", len(p.Scripts))
	fmt.Fprintf(sb, "  External Links: %d\n", len(p.ExternalLinks))
	fmt.Fprintf(sb, "  Console Logs:   %d\n", p.ConsoleLogs)
	fmt.Fprintf(sb, "  Requests:       %d (%d bytes, %d domains)\n",
		r.Network.Requests, r.Network.Bytes, len(r.Network.Domains))

	if len(r.Technologies) > 0 {
		names := make([]string, len(r.Technologies))
		for i, t := range r.Technologies {
			names[i] = t.Name
		}
		fmt.Fprintf(sb, "  Technologies:   %s\n", strings.Join(names, ", "))
	}
	for _, f := range p.Warnings {
		fmt.Fprintf(sb, "  [warning] %s\n", f.Title)
		if w.verbose && f.Description != "" {
			fmt.Fprintf(sb, "        %s\n", f.Description)
		}
	}

	if w.verbose {
		for _, typ := range slices.Sorted(maps.Keys(r.Network.Types)) {
			fmt.Fprintf(sb, "    %-12s %d\n", typ, r.Network.Types[typ])
		}
		for _, d := range r.Network.Domains {
			fmt.Fprintf(sb, "    [domain] %s\n", d)
		}
	}
	sb.WriteString("\n")
}
