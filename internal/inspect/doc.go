// Package inspect extracts risk-relevant signals from a rendered page.
//
// Given the serialized DOM and the main document's response headers it
// reports:
//   - technologies detected from headers and markup
//   - mixed content (plain http:// resources on an https:// page)
//   - whether the page contains a login form
//   - external links and script sources
//   - iframe and form counts
//   - content warnings: obfuscated scripts, forms and redirects leading to
//     another site, hidden iframes, exposed error details
//
// Inspection never fails: malformed markup is parsed leniently and an
// empty document yields an empty Report.
package inspect
