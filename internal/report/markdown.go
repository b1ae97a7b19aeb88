package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/urlrisk/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs one result.
func (w *MarkdownWriter) Write(result *model.ScanResult) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("URL Risk Report")
	md.PlainText("")
	w.writeResult(md, result)
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteBatch outputs an overview table followed by every result.
func (w *MarkdownWriter) WriteBatch(results []*model.ScanResult) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("URL Risk Report")
	md.PlainText("")

	md.H2("Overview")
	md.PlainText("")
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{
			"`" + r.URL + "`",
			levelIcon(r.ThreatLevel) + " " + levelLabel(r.ThreatLevel),
			strconv.Itoa(r.ThreatScore),
			strconv.Itoa(r.Security.Score),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Threat Level", "Threat Score", "Security Score"},
		Rows:   rows,
	})
	md.PlainText("")
	w.writeLevelChart(md, results)

	for _, r := range results {
		md.HorizontalRule()
		md.PlainText("")
		w.writeResult(md, r)
	}
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeResult(md *markdown.Markdown, r *model.ScanResult) {
	w.writeHeader(md, r)
	w.writeAlert(md, r)
	w.writeVerdict(md, r)
	if r.Degraded() {
		return
	}
	w.writeDomain(md, r)
	w.writeSecurity(md, r)
	w.writeFindings(md, r.Security.Vulnerabilities)
	w.writePage(md, r)
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, r *model.ScanResult) {
	md.H2(r.URL)
	md.PlainText("")

	status := "✅ Complete"
	if r.Degraded() {
		status = "❌ Failed - " + r.Error
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"URL", "`" + r.URL + "`"},
			{"Final URL", "`" + orDash(r.FinalURL) + "`"},
			{"Scan Date", r.ScanDate.Format(dateLayout)},
			{"Threat Level", levelIcon(r.ThreatLevel) + " " + levelLabel(r.ThreatLevel)},
			{"Threat Score", fmt.Sprintf("%d/%d", r.ThreatScore, model.MaxThreatScore)},
			{"Security Score", fmt.Sprintf("%d/%d", r.Security.Score, model.MaxSecurityScore)},
			{"Confidence", strconv.Itoa(r.Confidence) + "%"},
			{"Status", status},
		},
	})
	md.PlainText("")
}

func levelIcon(level model.ThreatLevel) string {
	switch level {
	case model.ThreatDangerous:
		return "🔴"
	case model.ThreatSuspicious:
		return "🟡"
	case model.ThreatSafe:
		return "🟢"
	default:
		return "⚪"
	}
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, r *model.ScanResult) {
	switch {
	case r.Degraded():
		md.Cautionf("The scan could not complete (%s). The verdict is based on the failure alone.", r.Error)
	case r.ThreatLevel == model.ThreatDangerous:
		md.Cautionf("Dangerous: threat score %d/%d. Do not enter credentials or personal data.",
			r.ThreatScore, model.MaxThreatScore)
	case r.ThreatLevel == model.ThreatSuspicious:
		md.Warningf("Suspicious: threat score %d/%d. Verify the site before trusting it.",
			r.ThreatScore, model.MaxThreatScore)
	case len(r.Security.Vulnerabilities) > 0:
		md.Importantf("No threat indicators, but %d security weakness(es) were found.",
			len(r.Security.Vulnerabilities))
	default:
		md.Tip("No significant risk indicators detected.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeVerdict(md *markdown.Markdown, r *model.ScanResult) {
	md.PlainText("### Indicators")
	md.PlainText("")
	if len(r.Indicators) == 0 {
		md.PlainText("None.")
	} else {
		md.BulletList(r.Indicators...)
	}
	md.PlainText("")

	if len(r.Recommendations) > 0 {
		md.PlainText("### Recommendations")
		md.PlainText("")
		md.BulletList(r.Recommendations...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeDomain(md *markdown.Markdown, r *model.ScanResult) {
	md.PlainText("### Domain")
	md.PlainText("")

	age := "unknown"
	if r.Domain.AgeDays != nil {
		age = strconv.Itoa(*r.Domain.AgeDays) + " days"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Name", "IP", "Registrar", "Age"},
		Rows: [][]string{{
			orDash(r.Domain.Name),
			optional(r.Domain.IP),
			optional(r.Domain.Registrar),
			age,
		}},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSecurity(md *markdown.Markdown, r *model.ScanResult) {
	s := r.Security
	md.PlainText("### Security")
	md.PlainText("")

	tls := "❌ Invalid"
	if s.SSL.Valid {
		tls = fmt.Sprintf("✅ Valid (%d days remaining)", s.SSL.DaysRemaining)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Check", "Result"},
		Rows: [][]string{
			{"TLS Certificate", tls},
			{"Issuer", orDash(s.SSL.Issuer)},
			{"Protocol", orDash(strings.TrimSpace(s.SSL.Protocol + " " + s.SSL.Cipher))},
			{"Headers Present", orDash(strings.Join(s.HeadersAnalysis.Present, ", "))},
			{"Headers Missing", orDash(strings.Join(s.HeadersAnalysis.Missing, ", "))},
			{"Headers Weak", orDash(strings.Join(s.HeadersAnalysis.Weak, ", "))},
			{"Cookies", fmt.Sprintf("%d total, %d secure, %d httpOnly, %d sameSite",
				s.Cookies.Total, s.Cookies.Secure, s.Cookies.HTTPOnly, s.Cookies.SameSite)},
			{"Mixed Content", strconv.Itoa(s.MixedContent.Count)},
			{"Open Ports", joinInts(s.Ports.Open)},
			{"Weak Ports", joinInts(s.Ports.Weak)},
		},
	})
	md.PlainText("")

	if len(s.MixedContent.Resources) > 0 {
		md.Details("Mixed content resources", strings.Join(s.MixedContent.Resources, "\n"))
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, findings []model.Finding) {
	md.PlainText("### Findings")
	md.PlainText("")
	if len(findings) == 0 {
		md.PlainText("No security findings detected.")
		md.PlainText("")
		return
	}

	groups := findingsBySeverity(findings)
	rows := make([][]string, 0, len(findings))
	for _, sev := range severityOrder {
		for _, f := range groups[sev] {
			rows = append(rows, []string{
				severityIcon(sev) + " " + titleCaser.String(sev.String()),
				f.Title,
				truncateString(orDash(f.Description), 80),
			})
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Title", "Description"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(groups) > 1 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Finding Severity Distribution"),
			piechart.WithShowData(true),
		)
		for _, sev := range severityOrder {
			if n := len(groups[sev]); n > 0 {
				chart.LabelAndIntValue(titleCaser.String(sev.String()), uint64(n))
			}
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}
}

func severityIcon(s model.Severity) string {
	switch s {
	case model.SeverityHigh:
		return "🟠"
	case model.SeverityMedium:
		return "🟡"
	default:
		return "🔵"
	}
}

func (w *MarkdownWriter) writePage(md *markdown.Markdown, r *model.ScanResult) {
	p := r.Page
	md.PlainText("### Page")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Title", orDash(p.Title)},
			{"Login Form", strconv.FormatBool(p.HasLoginForm)},
			{"Forms", strconv.Itoa(p.Forms)},
			{"Iframes", strconv.Itoa(p.Iframes)},
			{"Scripts", strconv.Itoa(len(p.Scripts))},
			{"External Links", strconv.Itoa(len(p.ExternalLinks))},
			{"Console Logs", strconv.Itoa(p.ConsoleLogs)},
			{"Requests", fmt.Sprintf("%d (%d bytes)", r.Network.Requests, r.Network.Bytes)},
		},
	})
	md.PlainText("")

	if len(r.Technologies) > 0 {
		rows := make([][]string, len(r.Technologies))
		for i, t := range r.Technologies {
			rows[i] = []string{t.Name, t.Type}
		}
		md.Table(markdown.TableSet{Header: []string{"Technology", "Type"}, Rows: rows})
		md.PlainText("")
	}

	if len(p.Warnings) > 0 {
		rows := make([][]string, len(p.Warnings))
		for i, f := range p.Warnings {
			rows[i] = []string{severityIcon(f.Severity) + " " + titleCaser.String(f.Severity.String()), f.Title, f.Description}
		}
		md.Table(markdown.TableSet{Header: []string{"Severity", "Content Warning", "Description"}, Rows: rows})
		md.PlainText("")
	}

	if len(r.Network.Types) > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Requests by Resource Type"),
			piechart.WithShowData(true),
		)
		for _, typ := range slices.Sorted(maps.Keys(r.Network.Types)) {
			chart.LabelAndIntValue(typ, uint64(r.Network.Types[typ]))
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	if len(r.Network.Domains) > 0 {
		md.Details("Contacted domains", strings.Join(r.Network.Domains, "\n"))
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeLevelChart(md *markdown.Markdown, results []*model.ScanResult) {
	counts := make(map[model.ThreatLevel]int)
	for _, r := range results {
		counts[r.ThreatLevel]++
	}
	if len(counts) < 2 {
		return
	}
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Threat Levels"),
		piechart.WithShowData(true),
	)
	for _, level := range []model.ThreatLevel{model.ThreatDangerous, model.ThreatSuspicious, model.ThreatSafe} {
		if n := counts[level]; n > 0 {
			chart.LabelAndIntValue(levelLabel(level), uint64(n))
		}
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [urlrisk](https://github.com/nao1215/urlrisk)*")
}
