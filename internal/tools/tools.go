// Package tools implements the four web-retrieval operations exposed to the
// client and the closed registry that maps a tool name to its handler.
//
// Handlers never return Go errors. Every outcome, including validation and
// transport failures, is a result object carrying a success flag, so the
// dispatch loop can emit it unmodified.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/websearch-worker/internal/cache"
	"github.com/JakeFAU/websearch-worker/internal/document"
	"github.com/JakeFAU/websearch-worker/internal/protocol"
	"github.com/JakeFAU/websearch-worker/internal/retrieval"
)

// Name identifies a registered tool.
type Name string

// The closed set of tools, in registration order.
const (
	WebSearch    Name = "webSearch"
	FetchWebpage Name = "fetchWebpage"
	ExtractLinks Name = "extractLinks"
	ScrapeData   Name = "scrapeData"
)

const timeoutMessage = "Request timeout"

// Handler runs one tool invocation against its raw params object.
type Handler func(ctx context.Context, params json.RawMessage) any

// Tool is a registry entry.
type Tool struct {
	Name        Name
	Description string
	Handler     Handler
}

// Registry is the static name → handler table.
type Registry struct {
	tools []Tool
}

// NewRegistry binds every tool to tb.
func NewRegistry(tb *Toolbox) *Registry {
	return &Registry{tools: []Tool{
		{Name: WebSearch, Description: "Search the web using DuckDuckGo (no API key required)", Handler: tb.WebSearch},
		{Name: FetchWebpage, Description: "Fetch and parse webpage content", Handler: tb.FetchWebpage},
		{Name: ExtractLinks, Description: "Extract all links from a webpage", Handler: tb.ExtractLinks},
		{Name: ScrapeData, Description: "Scrape structured data from a webpage using CSS selectors", Handler: tb.ScrapeData},
	}}
}

// Lookup finds a tool by its wire name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	for _, t := range r.tools {
		if string(t.Name) == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Infos describes every tool in registration order.
func (r *Registry) Infos() []protocol.ToolInfo {
	infos := make([]protocol.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		infos = append(infos, protocol.ToolInfo{Name: string(t.Name), Description: t.Description})
	}
	return infos
}

// Options tunes tool limits and endpoints.
type Options struct {
	SearchEndpoint   string
	DefaultResults   int
	MaxResults       int
	MaxTextChars     int
	MaxLinkTextChars int
}

// DefaultOptions returns the limits used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		SearchEndpoint:   "https://html.duckduckgo.com/html/",
		DefaultResults:   10,
		MaxResults:       20,
		MaxTextChars:     10000,
		MaxLinkTextChars: 100,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.SearchEndpoint == "" {
		o.SearchEndpoint = def.SearchEndpoint
	}
	if o.DefaultResults <= 0 {
		o.DefaultResults = def.DefaultResults
	}
	if o.MaxResults <= 0 {
		o.MaxResults = def.MaxResults
	}
	if o.MaxTextChars <= 0 {
		o.MaxTextChars = def.MaxTextChars
	}
	if o.MaxLinkTextChars <= 0 {
		o.MaxLinkTextChars = def.MaxLinkTextChars
	}
	return o
}

// Toolbox holds the dependencies shared by the tool handlers.
type Toolbox struct {
	fetcher retrieval.Fetcher
	cache   *cache.TTL[*FetchResult]
	opts    Options
	logger  *zap.Logger
}

// NewToolbox wires the handlers to a fetcher and the fetch cache.
func NewToolbox(fetcher retrieval.Fetcher, fetchCache *cache.TTL[*FetchResult], opts Options, logger *zap.Logger) *Toolbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fetchCache == nil {
		fetchCache = cache.New[*FetchResult](5*time.Minute, nil)
	}
	return &Toolbox{
		fetcher: fetcher,
		cache:   fetchCache,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// ErrorResult is the failure shape shared by every tool.
type ErrorResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func failure(msg string) ErrorResult {
	return ErrorResult{Success: false, Error: msg}
}

// failed converts a transport or parse error into a result, logging it.
func (t *Toolbox) failed(tool Name, err error) ErrorResult {
	if errors.Is(err, retrieval.ErrTimeout) {
		t.logger.Warn("tool request timed out", zap.String("tool", string(tool)), zap.Error(err))
		return failure(timeoutMessage)
	}
	t.logger.Error("tool failed", zap.String("tool", string(tool)), zap.Error(err))
	return failure(err.Error())
}

func decodeParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

// page is a fetched and parsed document.
type page struct {
	response retrieval.FetchResponse
	finalURL *url.URL
	doc      *document.Document
}

func (t *Toolbox) load(ctx context.Context, req retrieval.FetchRequest) (page, error) {
	resp, err := t.fetcher.Fetch(ctx, req)
	if err != nil {
		return page{}, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	finalURL, err := resp.FinalURL()
	if err != nil {
		return page{}, fmt.Errorf("parse final url: %w", err)
	}
	doc, err := document.Parse(resp.Body)
	if err != nil {
		return page{}, err
	}
	return page{response: resp, finalURL: finalURL, doc: doc}, nil
}

func boolOrDefault(ptr *bool, def bool) bool {
	if ptr == nil {
		return def
	}
	return *ptr
}
