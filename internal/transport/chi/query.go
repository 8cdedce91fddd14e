package chi

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/sitly-nl/matchsearch/internal/domain"
	"github.com/sitly-nl/matchsearch/internal/domain/search/request"
)

// decodeBrackets turns bracketed query keys into a nested tree:
// filter[center][lat]=52 becomes {"filter": {"center": {"lat": "52"}}}.
// A trailing [] or a repeated key collects values into a list.
func decodeBrackets(values url.Values) (map[string]any, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	root := make(map[string]any)
	for _, k := range keys {
		path, err := splitKey(k)
		if err != nil {
			return nil, err
		}
		for _, v := range values[k] {
			if err := insert(root, path, v); err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
		}
	}
	return root, nil
}

// splitKey splits "a[b][c]" into [a b c]. An empty segment marks a list.
func splitKey(key string) ([]string, error) {
	head, rest, found := strings.Cut(key, "[")
	if head == "" {
		return nil, fmt.Errorf("malformed parameter %q", key)
	}
	path := []string{head}
	if !found {
		return path, nil
	}
	rest = "[" + rest
	for rest != "" {
		if rest[0] != '[' {
			return nil, fmt.Errorf("malformed parameter %q", key)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, fmt.Errorf("malformed parameter %q", key)
		}
		path = append(path, rest[1:end])
		rest = rest[end+1:]
	}
	for _, seg := range path[:len(path)-1] {
		if seg == "" {
			return nil, fmt.Errorf("malformed parameter %q: [] must be last", key)
		}
	}
	return path, nil
}

func insert(node map[string]any, path []string, value string) error {
	for i, seg := range path {
		last := i == len(path)-1
		if !last && path[i+1] == "" {
			return appendValue(node, seg, value)
		}
		if last {
			if cur, ok := node[seg]; ok {
				return appendExisting(node, seg, cur, value)
			}
			node[seg] = value
			return nil
		}

		child, ok := node[seg]
		if !ok {
			m := make(map[string]any)
			node[seg] = m
			node = m
			continue
		}
		m, ok := child.(map[string]any)
		if !ok {
			return fmt.Errorf("%s is both a value and an object", seg)
		}
		node = m
	}
	return nil
}

func appendValue(node map[string]any, key, value string) error {
	cur, ok := node[key]
	if !ok {
		node[key] = []any{value}
		return nil
	}
	return appendExisting(node, key, cur, value)
}

func appendExisting(node map[string]any, key string, cur any, value string) error {
	switch x := cur.(type) {
	case []any:
		node[key] = append(x, value)
	case string:
		node[key] = []any{x, value}
	default:
		return fmt.Errorf("%s is both an object and a value", key)
	}
	return nil
}

// searchInput builds the raw search input from the request's query string.
func searchInput(r *http.Request) (request.RawInput, error) {
	q := r.URL.Query()
	tree, err := decodeBrackets(q)
	if err != nil {
		return request.RawInput{}, domain.NewParseError("query", err)
	}

	raw := request.RawInput{
		Group:    tree["group"],
		Explain:  tree["explain"],
		Test:     tree["test"],
		CacheKey: r.URL.RequestURI(),
	}
	if raw.Filter, err = object(tree, "filter"); err != nil {
		return request.RawInput{}, err
	}
	if raw.Page, err = object(tree, "page"); err != nil {
		return request.RawInput{}, err
	}
	if raw.Weights, err = object(tree, "weights"); err != nil {
		return request.RawInput{}, err
	}
	if raw.Sort, err = sortFields(tree["sort"]); err != nil {
		return request.RawInput{}, err
	}

	if err := runtime.BindQueryParameter("form", true, false, "meta", q, &raw.Meta); err != nil {
		return request.RawInput{}, domain.NewParseError("meta", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "locale", q, &raw.LocaleID); err != nil {
		return request.RawInput{}, domain.NewParseError("locale", err)
	}
	return raw, nil
}

func object(tree map[string]any, key string) (map[string]any, error) {
	v, ok := tree[key]
	if !ok {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, domain.NewParseErrorf(key, "expected %s[<name>]=<value>", key)
	}
	return m, nil
}

// sortFields accepts sort=a,b as well as sort[]=a&sort[]=b.
func sortFields(v any) ([]string, error) {
	var parts []string
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		parts = strings.Split(x, ",")
	case []any:
		for _, e := range x {
			s, _ := e.(string)
			parts = append(parts, strings.Split(s, ",")...)
		}
	default:
		return nil, domain.NewParseErrorf("sort", "expected a comma-separated list")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
