package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const (
	// HeaderUserName и HeaderUserRole выставляет внешний прокси аутентификации.
	HeaderUserName = "X-User-Name"
	HeaderUserRole = "X-User-Role"

	adminRole = "admin"
)

// IdentityProvider определяет пользователя запроса. ok=false означает анонимный запрос.
type IdentityProvider interface {
	Identify(r *http.Request) (domain.Actor, bool)
}

// HeaderIdentity доверяет заголовкам X-User-Name и X-User-Role.
type HeaderIdentity struct{}

// Identify читает пользователя из заголовков. Роль сравнивается без учёта регистра.
func (HeaderIdentity) Identify(r *http.Request) (domain.Actor, bool) {
	name := strings.TrimSpace(r.Header.Get(HeaderUserName))
	if name == "" {
		return domain.Actor{}, false
	}
	role := strings.TrimSpace(r.Header.Get(HeaderUserRole))
	return domain.Actor{Name: name, IsAdmin: strings.EqualFold(role, adminRole)}, true
}

type actorContextKey struct{}

func withActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext возвращает пользователя, определённого RequireIdentity.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// RequireIdentity отклоняет анонимные запросы с 401.
func RequireIdentity(provider IdentityProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := provider.Identify(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "user identity is required")
				return
			}
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}

// RequireAdmin пропускает только администраторов, остальным отвечает 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "user identity is required")
			return
		}
		if !actor.IsAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "admin role is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
