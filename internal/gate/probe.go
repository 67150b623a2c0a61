package gate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultProbeTimeout bounds the preview fetch and render.
const DefaultProbeTimeout = 15 * time.Second

const maxProbeBody = 2 << 20

// ProbeOptions configures a Prober.
type ProbeOptions struct {
	Timeout time.Duration
	// RenderCommand optionally renders the page (e.g. a headless browser with
	// --dump-dom). "{url}" is replaced with the preview URL. Its stdout is the
	// DOM and its stderr is scanned for console errors.
	RenderCommand []string
	Client        *http.Client
	Logger        *zap.Logger
}

// Prober checks a running preview for obvious breakage.
type Prober struct {
	timeout time.Duration
	render  []string
	client  *http.Client
	logger  *zap.Logger
}

// NewProber creates a Prober.
func NewProber(opts ProbeOptions) *Prober {
	p := &Prober{
		timeout: opts.Timeout,
		render:  opts.RenderCommand,
		client:  opts.Client,
		logger:  opts.Logger,
	}
	if p.timeout <= 0 {
		p.timeout = DefaultProbeTimeout
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: p.timeout}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Page is the material the heuristics run on.
type Page struct {
	HTML     string
	Console  string
	Rendered bool
}

// Probe fetches url and returns one issue per failing heuristic. An empty
// url or an unreachable preview yields no issues; probe errors never
// propagate.
func (p *Prober) Probe(ctx context.Context, url string) []string {
	if strings.TrimSpace(url) == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.logger.Debug("probe request invalid", zap.String("url", url), zap.Error(err))
		return nil
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("preview unreachable, skipping probe", zap.String("url", url), zap.Error(err))
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		p.logger.Debug("reading preview failed", zap.String("url", url), zap.Error(err))
		return nil
	}

	var issues []string
	if resp.StatusCode >= 500 {
		issues = append(issues, fmt.Sprintf("preview %s responded with HTTP %d", url, resp.StatusCode))
	}

	page := Page{HTML: string(body)}
	if len(p.render) > 0 {
		if dom, console, ok := p.renderPage(ctx, url); ok {
			page = Page{HTML: dom, Console: console, Rendered: true}
		}
	}

	issues = append(issues, Inspect(page)...)
	if len(issues) > 0 {
		p.logger.Info("preview probe found issues", zap.String("url", url), zap.Int("count", len(issues)))
	}
	return issues
}

func (p *Prober) renderPage(ctx context.Context, url string) (string, string, bool) {
	argv := make([]string, len(p.render))
	for i, a := range p.render {
		argv[i] = strings.ReplaceAll(a, "{url}", url)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		p.logger.Debug("render command failed, using raw HTML", zap.Strings("command", argv), zap.Error(err))
		return "", "", false
	}
	return stdout.String(), stderr.String(), true
}

var (
	overlayMarkers = []string{
		"vite-error-overlay",
		"webpack-dev-server-client-overlay",
		"nextjs__container_errors",
		"react-error-overlay",
		"error-overlay",
	}
	overlayTexts = []string{
		"unhandled runtime error",
		"failed to compile",
		"internal server error",
	}
	rootIDs        = map[string]bool{"root": true, "app": true, "__next": true, "__nuxt": true, "svelte": true}
	loadingMarkers = []string{"loading", "spinner", "skeleton"}
	consoleErrorRe = regexp.MustCompile(`(?i)(uncaught|console[^\n]*error|\berror:)`)
)

// Inspect applies the probe heuristics to page.
func Inspect(page Page) []string {
	var issues []string

	doc, err := html.Parse(strings.NewReader(page.HTML))
	if err != nil {
		return []string{fmt.Sprintf("preview HTML could not be parsed: %v", err)}
	}

	s := scan(doc)
	// A client-rendered page fetched without rendering has an empty root and
	// placeholder content until its scripts run.
	static := !page.Rendered && s.scripts > 0

	if s.overlay != "" {
		issues = append(issues, fmt.Sprintf("error overlay present on preview (%s)", s.overlay))
	}
	if s.root != nil && !static && isEmpty(s.root) {
		issues = append(issues, fmt.Sprintf("content root #%s is empty", attr(s.root, "id")))
	}
	if s.controls > 0 && s.disabled == s.controls {
		issues = append(issues, fmt.Sprintf("all %d interactive controls are disabled", s.controls))
	}
	if s.loading > 0 && !static && len(strings.TrimSpace(s.text)) < 40 {
		issues = append(issues, "page appears stuck on a loading indicator")
	}

	var consoleErrs []string
	for _, line := range strings.Split(page.Console, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && consoleErrorRe.MatchString(line) {
			consoleErrs = append(consoleErrs, line)
		}
	}
	if len(consoleErrs) > 0 {
		if len(consoleErrs) > 3 {
			consoleErrs = consoleErrs[:3]
		}
		issues = append(issues, "console errors: "+strings.Join(consoleErrs, " | "))
	}

	return issues
}

type pageScan struct {
	overlay  string
	root     *html.Node
	controls int
	disabled int
	loading  int
	scripts  int
	text     string
}

func scan(doc *html.Node) pageScan {
	var s pageScan
	var text strings.Builder

	var walk func(n *html.Node, inLoading bool)
	walk = func(n *html.Node, inLoading bool) {
		switch n.Type {
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script:
				s.scripts++
				return
			case atom.Style, atom.Noscript, atom.Template:
				return
			case atom.Button, atom.Select, atom.Textarea:
				s.controls++
				if isDisabled(n) {
					s.disabled++
				}
			case atom.Input:
				if !strings.EqualFold(attr(n, "type"), "hidden") {
					s.controls++
					if isDisabled(n) {
						s.disabled++
					}
				}
			}

			marker := strings.ToLower(n.Data + " " + attr(n, "id") + " " + attr(n, "class"))
			if s.overlay == "" {
				for _, m := range overlayMarkers {
					if strings.Contains(marker, m) {
						s.overlay = m
						break
					}
				}
			}
			if s.root == nil && rootIDs[attr(n, "id")] {
				s.root = n
			}
			if !inLoading && isLoading(n, marker) {
				s.loading++
				inLoading = true
			}
		case html.TextNode:
			t := strings.TrimSpace(n.Data)
			if t != "" {
				lower := strings.ToLower(t)
				if s.overlay == "" {
					for _, m := range overlayTexts {
						if strings.Contains(lower, m) {
							s.overlay = m
							break
						}
					}
				}
				if !inLoading {
					text.WriteString(t)
					text.WriteString(" ")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inLoading)
		}
	}
	walk(doc, false)

	s.text = text.String()
	return s
}

func isLoading(n *html.Node, marker string) bool {
	if attr(n, "aria-busy") == "true" || attr(n, "role") == "progressbar" {
		return true
	}
	for _, m := range loadingMarkers {
		if strings.Contains(marker, m) {
			return true
		}
	}
	return false
}

func isDisabled(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key == "disabled" {
			return true
		}
	}
	return attr(n, "aria-disabled") == "true"
}

func isEmpty(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			return false
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return false
			}
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
