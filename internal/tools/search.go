package tools

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/websearch-worker/internal/document"
	"github.com/JakeFAU/websearch-worker/internal/retrieval"
)

const (
	searchSource   = "DuckDuckGo"
	redirectPrefix = "//duckduckgo.com/l/"
)

// SearchParams is the webSearch input.
type SearchParams struct {
	Query      string `json:"query"`
	MaxResults *int   `json:"maxResults"`
}

// SearchHit is one organic result.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// SearchResult is the webSearch output.
type SearchResult struct {
	Success bool        `json:"success"`
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
	Count   int         `json:"count"`
}

// WebSearch queries the DuckDuckGo HTML endpoint.
func (t *Toolbox) WebSearch(ctx context.Context, raw json.RawMessage) any {
	var params SearchParams
	if err := decodeParams(raw, &params); err != nil {
		return failure(err.Error())
	}
	if params.Query == "" {
		return failure("Query parameter is required")
	}
	limit := t.resultLimit(params.MaxResults)

	p, err := t.load(ctx, retrieval.FetchRequest{
		URL: t.opts.SearchEndpoint,
		Form: map[string]string{
			"q":  params.Query,
			"s":  "0",
			"dc": "0",
			"v":  "l",
			"o":  "json",
		},
	})
	if err != nil {
		return t.failed(WebSearch, err)
	}

	blocks := p.doc.Find("div.result")
	if blocks.Length() > limit {
		blocks = blocks.Slice(0, limit)
	}
	hits := make([]SearchHit, 0, blocks.Length())
	blocks.Each(func(_ int, block *goquery.Selection) {
		title := block.Find("a.result__a").First()
		if title.Length() == 0 {
			return
		}
		href, _ := title.Attr("href")
		hits = append(hits, SearchHit{
			Title:   document.StrippedText(title),
			URL:     decodeRedirect(href),
			Snippet: document.StrippedText(block.Find("a.result__snippet").First()),
			Source:  searchSource,
		})
	})

	return SearchResult{
		Success: true,
		Query:   params.Query,
		Results: hits,
		Count:   len(hits),
	}
}

func (t *Toolbox) resultLimit(requested *int) int {
	if requested == nil || *requested <= 0 {
		return min(t.opts.DefaultResults, t.opts.MaxResults)
	}
	return min(*requested, t.opts.MaxResults)
}

// decodeRedirect unwraps a DuckDuckGo click-through link. The target is the
// text after "uddg=" up to the next "&", percent-decoded. Anything that does
// not fit that shape is returned untouched.
func decodeRedirect(href string) string {
	if !strings.HasPrefix(href, redirectPrefix) {
		return href
	}
	u, err := url.Parse(href)
	if err != nil || !strings.Contains(u.RawQuery, "uddg=") {
		return href
	}
	target, _, _ := strings.Cut(strings.Split(u.RawQuery, "uddg=")[1], "&")
	decoded, err := url.PathUnescape(target)
	if err != nil {
		return href
	}
	return decoded
}
