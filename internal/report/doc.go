// Package report renders scan results.
//
// Three formats implement Writer:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: the ScanResult JSON document, or an array for batches
//   - MarkdownWriter: a shareable report with tables and mermaid charts
//
// MultiWriter fans one result out to several writers, for example the
// terminal and a report file.
package report
