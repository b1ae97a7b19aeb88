package browser

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
)

// MaxConsoleMessages is the number of console messages kept per session.
// Later messages are counted but not stored.
const MaxConsoleMessages = 20

// ConsoleMessage is one console API call made by the page.
type ConsoleMessage struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Telemetry is a snapshot of the activity observed during a session.
type Telemetry struct {
	// Requests is the number of requests the page issued.
	Requests int
	// Types counts requests per lowercase resource type ("document", "script", ...).
	Types map[string]int
	// Hosts lists contacted hosts in first-contact order.
	Hosts []string
	// Bytes is the sum of Content-Length over all responses that declared one.
	Bytes int64
	// Headers holds the main document's response headers with lowercase names.
	Headers map[string]string
	// Console holds the first MaxConsoleMessages console messages.
	Console []ConsoleMessage
	// ConsoleTotal is the number of console messages, stored or not.
	ConsoleTotal int
}

// Recorder accumulates Telemetry from DevTools events.
// It is safe for concurrent use; Observe is called from the event loop
// while the session reads snapshots.
type Recorder struct {
	mu sync.Mutex

	requests  int
	types     map[string]int
	hosts     []string
	seenHosts map[string]struct{}
	bytes     int64
	headers   map[string]string
	console   []ConsoleMessage
	consoleN  int

	mainFrame  cdp.FrameID
	generation uint64
	inflight   map[network.RequestID]struct{}
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		types:     make(map[string]int),
		hosts:     make([]string, 0),
		seenHosts: make(map[string]struct{}),
		headers:   make(map[string]string),
		console:   make([]ConsoleMessage, 0),
		inflight:  make(map[network.RequestID]struct{}),
	}
}

// Observe records a single DevTools event. Unknown events are ignored.
func (r *Recorder) Observe(ev any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		r.onRequest(e)
	case *network.EventResponseReceived:
		r.onResponse(e)
	case *network.EventLoadingFinished:
		delete(r.inflight, e.RequestID)
	case *network.EventLoadingFailed:
		delete(r.inflight, e.RequestID)
	case *page.EventFrameNavigated:
		if e.Frame != nil && e.Frame.ParentID == "" {
			r.generation++
		}
	case *runtime.EventConsoleAPICalled:
		r.onConsole(e)
	}
}

func (r *Recorder) onRequest(e *network.EventRequestWillBeSent) {
	// A redirect reuses the request ID; the hop is still a request.
	r.requests++
	r.inflight[e.RequestID] = struct{}{}

	typ := strings.ToLower(string(e.Type))
	if typ == "" {
		typ = "other"
	}
	r.types[typ]++

	if e.Type == network.ResourceTypeDocument && r.mainFrame == "" {
		r.mainFrame = e.FrameID
	}

	if e.Request == nil {
		return
	}
	u, err := url.Parse(e.Request.URL)
	if err != nil || u.Hostname() == "" {
		return
	}
	host := strings.ToLower(u.Hostname())
	if _, ok := r.seenHosts[host]; !ok {
		r.seenHosts[host] = struct{}{}
		r.hosts = append(r.hosts, host)
	}
}

func (r *Recorder) onResponse(e *network.EventResponseReceived) {
	if e.Response == nil {
		return
	}
	headers := make(map[string]string, len(e.Response.Headers))
	for k, v := range e.Response.Headers {
		headers[strings.ToLower(k)] = fmt.Sprint(v)
	}

	if n, err := strconv.ParseInt(headers["content-length"], 10, 64); err == nil && n > 0 {
		r.bytes += n
	}

	// Redirect hops never produce a response event, so the last document
	// response in the main frame belongs to the final URL.
	if e.Type == network.ResourceTypeDocument && e.FrameID == r.mainFrame {
		r.headers = headers
	}
}

func (r *Recorder) onConsole(e *runtime.EventConsoleAPICalled) {
	r.consoleN++
	if len(r.console) >= MaxConsoleMessages {
		return
	}
	parts := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		if arg == nil {
			continue
		}
		parts = append(parts, remoteObjectText(arg))
	}
	r.console = append(r.console, ConsoleMessage{
		Level: string(e.Type),
		Text:  strings.Join(parts, " "),
	})
}

// remoteObjectText renders a console argument. Primitive values arrive as
// JSON; strings are unquoted. Objects fall back to their description.
func remoteObjectText(obj *runtime.RemoteObject) string {
	if len(obj.Value) > 0 {
		s := string(obj.Value)
		if unquoted, err := strconv.Unquote(s); err == nil {
			return unquoted
		}
		return s
	}
	if obj.Description != "" {
		return obj.Description
	}
	return string(obj.Type)
}

// Snapshot returns a copy of the telemetry recorded so far.
func (r *Recorder) Snapshot() Telemetry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Telemetry{
		Requests:     r.requests,
		Types:        maps.Clone(r.types),
		Hosts:        slices.Clone(r.hosts),
		Bytes:        r.bytes,
		Headers:      maps.Clone(r.headers),
		Console:      slices.Clone(r.console),
		ConsoleTotal: r.consoleN,
	}
}

// Generation returns the number of main-frame navigations observed.
// A change between two calls means the page's document was replaced.
func (r *Recorder) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Inflight returns the number of requests that have not finished yet.
func (r *Recorder) Inflight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}
