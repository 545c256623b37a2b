package tools

import (
	"context"
	"encoding/json"

	"github.com/JakeFAU/websearch-worker/internal/document"
	"github.com/JakeFAU/websearch-worker/internal/retrieval"
)

// LinksParams is the extractLinks input.
type LinksParams struct {
	URL          string `json:"url"`
	InternalOnly bool   `json:"internalOnly"`
	ExternalOnly bool   `json:"externalOnly"`
}

// Link is one extracted hyperlink.
type Link struct {
	URL      string `json:"url"`
	Text     string `json:"text"`
	Internal bool   `json:"internal"`
	Protocol string `json:"protocol"`
}

// LinksResult is the extractLinks output.
type LinksResult struct {
	Success  bool   `json:"success"`
	URL      string `json:"url"`
	Links    []Link `json:"links"`
	Count    int    `json:"count"`
	Internal int    `json:"internal"`
	External int    `json:"external"`
}

// ExtractLinks lists the distinct absolute links of a page.
func (t *Toolbox) ExtractLinks(ctx context.Context, raw json.RawMessage) any {
	var params LinksParams
	if err := decodeParams(raw, &params); err != nil {
		return failure(err.Error())
	}
	if params.URL == "" {
		return failure("URL parameter is required")
	}

	p, err := t.load(ctx, retrieval.FetchRequest{URL: params.URL})
	if err != nil {
		return t.failed(ExtractLinks, err)
	}

	result := LinksResult{Success: true, URL: p.response.URL, Links: []Link{}}
	seen := make(map[string]struct{})
	for _, anchor := range p.doc.Anchors() {
		target, err := retrieval.Resolve(p.finalURL, anchor.Href)
		if err != nil {
			continue
		}
		absolute := target.String()
		// Dedupe before filtering so a URL is judged once.
		if _, dup := seen[absolute]; dup {
			continue
		}
		seen[absolute] = struct{}{}

		internal := retrieval.SameHost(target, p.finalURL)
		if (params.InternalOnly && !internal) || (params.ExternalOnly && internal) {
			continue
		}
		result.Links = append(result.Links, Link{
			URL:      absolute,
			Text:     document.Truncate(anchor.Text, t.opts.MaxLinkTextChars),
			Internal: internal,
			Protocol: target.Scheme,
		})
		if internal {
			result.Internal++
		} else {
			result.External++
		}
	}
	result.Count = len(result.Links)
	return result
}
