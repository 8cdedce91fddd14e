package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sitly-nl/matchsearch/internal/domain/search/request"
)

func captureActor(got *request.Actor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestActorMiddleware_Anonymous(t *testing.T) {
	var got request.Actor
	handler := ActorMiddleware(captureActor(&got))

	req := httptest.NewRequest("GET", "/v1/nl/users/search", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("anonymous: got %d, want %d", rr.Code, http.StatusOK)
	}
	if got.IsAuthenticated() {
		t.Errorf("expected anonymous actor, got %+v", got)
	}
	if got.Context != request.ContextSelf {
		t.Errorf("context: got %q, want %q", got.Context, request.ContextSelf)
	}
}

func TestActorMiddleware_Headers(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		context string
		want    request.Actor
	}{
		{"self", "42", "", request.Actor{UserID: 42, Context: request.ContextSelf}},
		{"public", "42", "public", request.Actor{UserID: 42, Context: request.ContextPublic}},
		{"gem upper case", "7", "GEM", request.Actor{UserID: 7, Context: request.ContextGem}},
		{"anonymous public", "", "public", request.Actor{Context: request.ContextPublic}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got request.Actor
			handler := ActorMiddleware(captureActor(&got))

			req := httptest.NewRequest("GET", "/v1/nl/users/search", http.NoBody)
			if tt.userID != "" {
				req.Header.Set(HeaderUserID, tt.userID)
			}
			if tt.context != "" {
				req.Header.Set(HeaderSearchContext, tt.context)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
			}
			if got != tt.want {
				t.Errorf("actor: got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestActorMiddleware_InvalidHeaders_400(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
	}{
		{"non-numeric user id", HeaderUserID, "abc"},
		{"negative user id", HeaderUserID, "-3"},
		{"unknown context", HeaderSearchContext, "admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got request.Actor
			handler := ActorMiddleware(captureActor(&got))

			req := httptest.NewRequest("GET", "/v1/nl/users/search", http.NoBody)
			req.Header.Set(tt.header, tt.value)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != CodeBadRequest {
				t.Errorf("error code: got %s, want %s", errResp.Code, CodeBadRequest)
			}
		})
	}
}

func TestActorMiddleware_ExemptPaths(t *testing.T) {
	var got request.Actor
	handler := ActorMiddleware(captureActor(&got))

	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest("GET", path, http.NoBody)
		req.Header.Set(HeaderUserID, "not-a-number")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("exempt path %s: got %d, want %d", path, rr.Code, http.StatusOK)
		}
	}
}
