package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/JakeFAU/websearch-worker/internal/document"
	"github.com/JakeFAU/websearch-worker/internal/retrieval"
)

// ScrapeParams is the scrapeData input. Selectors stays raw until validated.
type ScrapeParams struct {
	URL       string          `json:"url"`
	Selectors json.RawMessage `json:"selectors"`
}

// SelectorSpec describes how to extract one field. On the wire it is either
// a bare selector string or {selector, attribute?, single?}.
type SelectorSpec struct {
	Selector  string
	Attribute string
	Single    bool
	// Simple is set for the bare string form.
	Simple bool
	// Ignored is set when the value is neither a string nor an object.
	Ignored bool
}

// UnmarshalJSON accepts both wire forms.
func (s *SelectorSpec) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		s.Ignored = true
		return nil
	}
	switch trimmed[0] {
	case '"':
		s.Simple = true
		if err := json.Unmarshal(trimmed, &s.Selector); err != nil {
			return fmt.Errorf("selector string: %w", err)
		}
	case '{':
		var rec struct {
			Selector  string `json:"selector"`
			Attribute string `json:"attribute"`
			Single    bool   `json:"single"`
		}
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return fmt.Errorf("selector record: %w", err)
		}
		s.Selector, s.Attribute, s.Single = rec.Selector, rec.Attribute, rec.Single
	default:
		s.Ignored = true
	}
	return nil
}

// ScrapeResult is the scrapeData output.
type ScrapeResult struct {
	Success         bool           `json:"success"`
	URL             string         `json:"url"`
	Data            map[string]any `json:"data"`
	FieldsExtracted int            `json:"fieldsExtracted"`
}

type compiledField struct {
	name    string
	spec    SelectorSpec
	matcher cascadia.Selector
}

// ScrapeData extracts the requested fields from a page with CSS selectors.
// All selectors are validated before the page is fetched.
func (t *Toolbox) ScrapeData(ctx context.Context, raw json.RawMessage) any {
	var params ScrapeParams
	if err := decodeParams(raw, &params); err != nil {
		return failure(err.Error())
	}
	if params.URL == "" {
		return failure("URL parameter is required")
	}
	if isEmptyJSON(params.Selectors) {
		return failure("Selectors parameter is required")
	}
	fields, err := compileSelectors(params.Selectors)
	if err != nil {
		return failure(err.Error())
	}

	p, err := t.load(ctx, retrieval.FetchRequest{URL: params.URL})
	if err != nil {
		return t.failed(ScrapeData, err)
	}

	data := make(map[string]any, len(fields))
	for _, f := range fields {
		matches := p.doc.Match(f.matcher)
		if matches.Length() == 0 {
			continue
		}
		values := extractValues(matches, f.spec)
		if !f.spec.Simple && f.spec.Single && len(values) > 0 {
			data[f.name] = values[0]
			continue
		}
		data[f.name] = values
	}

	return ScrapeResult{
		Success:         true,
		URL:             params.URL,
		Data:            data,
		FieldsExtracted: len(data),
	}
}

func extractValues(matches *goquery.Selection, spec SelectorSpec) []string {
	values := make([]string, 0, matches.Length())
	matches.Each(func(_ int, el *goquery.Selection) {
		if spec.Attribute == "" {
			values = append(values, document.StrippedText(el))
			return
		}
		if v, ok := el.Attr(spec.Attribute); ok && v != "" {
			values = append(values, v)
		}
	})
	return values
}

// compileSelectors decodes the selectors object and compiles every usable
// entry, in field-name order so the first reported error is stable.
func compileSelectors(raw json.RawMessage) ([]compiledField, error) {
	var specs map[string]SelectorSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("invalid selectors: %w", err)
	}
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]compiledField, 0, len(names))
	for _, name := range names {
		spec := specs[name]
		if spec.Ignored {
			continue
		}
		matcher, err := document.CompileSelector(spec.Selector)
		if err != nil {
			return nil, fmt.Errorf("invalid selector for field %q: %w", name, err)
		}
		fields = append(fields, compiledField{name: name, spec: spec, matcher: matcher})
	}
	return fields, nil
}

// isEmptyJSON reports whether raw is absent or an empty or zero JSON value.
func isEmptyJSON(raw json.RawMessage) bool {
	if len(bytes.TrimSpace(raw)) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	}
	return false
}
