// Package main provides the entry point for the urlrisk CLI.
//
// urlrisk loads a URL in headless Chrome, gathers DNS, WHOIS, TLS and port
// intelligence for its host, and reports how risky the URL is to visit.
//
// Usage:
//
//	urlrisk scan <url> [url...]
//	urlrisk serve
//	urlrisk history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
