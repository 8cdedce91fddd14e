// Package request holds a user search as it arrives, before normalization.
package request

// Context says on whose behalf a search runs.
type Context string

// Actor contexts.
const (
	// ContextSelf is a signed-in user searching for themselves.
	ContextSelf Context = "self"
	// ContextPublic is an anonymous or public-page search.
	ContextPublic Context = "public"
	// ContextGem is staff tooling; it may override weights and request explanations.
	ContextGem Context = "gem"
)

// ParseContext maps a header value to a Context, defaulting to ContextSelf.
func ParseContext(s string) (Context, bool) {
	switch Context(s) {
	case "", ContextSelf:
		return ContextSelf, true
	case ContextPublic, ContextGem:
		return Context(s), true
	}
	return "", false
}

// Actor identifies who is searching. UserID is zero for anonymous actors.
type Actor struct {
	UserID  int64
	Context Context
}

// IsAuthenticated reports whether a user is attached.
func (a Actor) IsAuthenticated() bool { return a.UserID > 0 }

// IsSelf reports a signed-in user searching on their own behalf.
func (a Actor) IsSelf() bool { return a.IsAuthenticated() && a.Context == ContextSelf }

// IsGem reports staff tooling.
func (a Actor) IsGem() bool { return a.Context == ContextGem }

// RawInput is the loosely-typed search request. Values are strings, numbers,
// booleans, lists or nested maps, as decoded by the transport.
type RawInput struct {
	Filter   map[string]any
	Sort     []string
	Page     map[string]any
	Group    any
	Explain  any
	Meta     string
	Weights  map[string]any
	Test     any
	LocaleID int
	// CacheKey identifies the request for count caching, typically its full URL.
	CacheKey string
}

// IsCountOnly reports whether only the total is requested.
func (r RawInput) IsCountOnly() bool { return r.Meta == "count" }
