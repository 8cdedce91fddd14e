package chi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sitly-nl/matchsearch/internal/domain/search/request"
	"github.com/sitly-nl/matchsearch/internal/logger"
)

// Gateway headers carrying the authenticated identity.
const (
	HeaderUserID        = "X-User-ID"
	HeaderSearchContext = "X-Search-Context"
)

// exemptPaths are routes that carry no actor (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type actorKey struct{}

// ActorMiddleware reads the actor set by the gateway. Authentication happens
// upstream; a missing user id means an anonymous search.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := exemptPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		var actor request.Actor
		if raw := strings.TrimSpace(r.Header.Get(HeaderUserID)); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id < 0 {
				writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid "+HeaderUserID+" header")
				return
			}
			actor.UserID = id
		}

		sc, ok := request.ParseContext(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderSearchContext))))
		if !ok {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid "+HeaderSearchContext+" header")
			return
		}
		actor.Context = sc

		ctx := r.Context()
		logger.AddFields(ctx,
			zap.Int64("actor_user_id", actor.UserID),
			zap.String("actor_context", string(actor.Context)),
		)
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, actorKey{}, actor)))
	})
}

// ActorFromContext returns the request's actor, anonymous when none was set.
func ActorFromContext(ctx context.Context) request.Actor {
	if a, ok := ctx.Value(actorKey{}).(request.Actor); ok {
		return a
	}
	return request.Actor{Context: request.ContextSelf}
}
