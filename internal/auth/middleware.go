package auth

import (
	"errors"
	"net/http"

	"github.com/Oniqq60/task_system_control/internal/permission"
	"github.com/Oniqq60/task_system_control/internal/respond"
	"github.com/Oniqq60/task_system_control/internal/user"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Authenticator проверяет access-токен и кладёт Subject в контекст запроса.
// Роль берётся из базы, а не из токена.
type Authenticator struct {
	secret []byte
	rdb    *redis.Client
	users  user.Repository
}

func NewAuthenticator(secret []byte, rdb *redis.Client, users user.Repository) *Authenticator {
	return &Authenticator{secret: secret, rdb: rdb, users: users}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := tokenFromRequest(r)
		if err != nil {
			respond.ErrorMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims, err := ParseToken(tokenString, a.secret, PurposeAccess)
		if err != nil || claims.UserID == uuid.Nil {
			respond.ErrorMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		if claims.ID != "" && a.rdb != nil {
			// недоступный Redis не блокирует запрос
			if exists, redisErr := a.rdb.Exists(r.Context(), tokenBlacklistPrefix+claims.ID).Result(); redisErr == nil && exists > 0 {
				respond.ErrorMessage(w, http.StatusUnauthorized, "token revoked")
				return
			}
		}

		u, err := a.users.GetByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				respond.ErrorMessage(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			respond.Error(w, err)
			return
		}

		ctx := permission.WithSubject(r.Context(), u.Subject())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
