package tools

import (
	"context"
	"encoding/json"

	"github.com/JakeFAU/websearch-worker/internal/document"
	"github.com/JakeFAU/websearch-worker/internal/metrics"
	"github.com/JakeFAU/websearch-worker/internal/retrieval"
)

const headingLimit = 5

// FetchParams is the fetchWebpage input.
type FetchParams struct {
	URL             string `json:"url"`
	ExtractText     *bool  `json:"extractText"`
	ExtractMetadata *bool  `json:"extractMetadata"`
	ExtractMarkdown *bool  `json:"extractMarkdown"`
}

// Headings holds the leading h1 and h2 texts of a page.
type Headings struct {
	H1 []string `json:"h1"`
	H2 []string `json:"h2"`
}

// FetchResult is the fetchWebpage output. Metadata keys are "title", every
// meta name or property, and "headings".
type FetchResult struct {
	Success     bool           `json:"success"`
	URL         string         `json:"url"`
	StatusCode  int            `json:"statusCode"`
	ContentType string         `json:"contentType"`
	Text        *string        `json:"text,omitempty"`
	TextLength  *int           `json:"textLength,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Markdown    *string        `json:"markdown,omitempty"`
}

// FetchWebpage retrieves a page and reports its text and metadata. Successful
// results are cached per requested URL; a live cache entry is returned as is,
// whatever extraction flags the caller passed.
func (t *Toolbox) FetchWebpage(ctx context.Context, raw json.RawMessage) any {
	var params FetchParams
	if err := decodeParams(raw, &params); err != nil {
		return failure(err.Error())
	}
	if params.URL == "" {
		return failure("URL parameter is required")
	}

	key := "fetch:" + params.URL
	if cached, ok := t.cache.Get(key); ok {
		metrics.ObserveCacheLookup(true)
		return cached
	}
	metrics.ObserveCacheLookup(false)

	p, err := t.load(ctx, retrieval.FetchRequest{URL: params.URL})
	if err != nil {
		return t.failed(FetchWebpage, err)
	}

	result := &FetchResult{
		Success:     true,
		URL:         p.response.URL,
		StatusCode:  p.response.StatusCode,
		ContentType: p.response.ContentType(),
	}
	if boolOrDefault(params.ExtractText, true) {
		text := p.doc.PlainText()
		truncated := document.Truncate(text, t.opts.MaxTextChars)
		length := document.Length(text)
		result.Text = &truncated
		result.TextLength = &length
	}
	if boolOrDefault(params.ExtractMetadata, true) {
		result.Metadata = pageMetadata(p.doc)
	}
	if boolOrDefault(params.ExtractMarkdown, false) {
		md, err := document.Markdown(p.response.Body)
		if err != nil {
			return t.failed(FetchWebpage, err)
		}
		md = document.Truncate(md, t.opts.MaxTextChars)
		result.Markdown = &md
	}

	t.cache.Set(key, result)
	return result
}

func pageMetadata(doc *document.Document) map[string]any {
	metadata := map[string]any{}
	if title, ok := doc.Title(); ok {
		metadata["title"] = title
	}
	for _, tag := range doc.MetaTags() {
		metadata[tag.Name] = tag.Content
	}
	metadata["headings"] = Headings{
		H1: nonNil(doc.Headings("h1", headingLimit)),
		H2: nonNil(doc.Headings("h2", headingLimit)),
	}
	return metadata
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
