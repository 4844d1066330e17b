package auth

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Oniqq60/task_system_control/internal/middleware"
	"github.com/Oniqq60/task_system_control/internal/respond"
	"github.com/Oniqq60/task_system_control/internal/user"
	"github.com/redis/go-redis/v9"
)

const (
	tokenBlacklistPrefix = "auth:token:blacklist:"
	loginAttemptsPrefix  = "auth:login:attempts:"
	authCookieName       = "access_token"
	maxLoginAttempts     = 5
	loginAttemptsWindow  = 10 * time.Minute
)

var errTokenRequired = errors.New("token required")

type Handler struct {
	service      Service
	authn        *Authenticator
	rdb          *redis.Client
	secureCookie bool
	clientIP     func(*http.Request) string
	logger       *log.Logger
}

// NewHandler keys login throttling by the address from resolver; nil trusts no proxy.
func NewHandler(service Service, authn *Authenticator, rdb *redis.Client, resolver *middleware.ClientIPResolver, secureCookie bool, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		service:      service,
		authn:        authn,
		rdb:          rdb,
		secureCookie: secureCookie,
		clientIP:     resolver.ClientIP,
		logger:       logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	User        user.User `json:"user"`
}

type forgotRequest struct {
	Email string `json:"email"`
	Mode  string `json:"mode,omitempty"`
}

func (h *Handler) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.Handle("GET /auth/me", h.authn.Middleware(http.HandlerFunc(h.Me)))
	mux.HandleFunc("POST /auth/forgot-password", h.ForgotPassword)
	mux.HandleFunc("POST /auth/reset-password", h.ResetPassword)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	req.Email = user.NormalizeEmail(req.Email)
	if user.ValidateEmail(req.Email) != nil {
		respond.ErrorMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	// лимит попыток по email+ip
	key := loginAttemptsPrefix + req.Email + ":" + h.clientIP(r)
	if h.rdb != nil {
		if cnt, err := h.rdb.Get(r.Context(), key).Int64(); err == nil && cnt >= maxLoginAttempts {
			respond.ErrorMessage(w, http.StatusTooManyRequests, "too many attempts")
			return
		}
	}

	u, claims, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if h.rdb != nil {
			val, _ := h.rdb.Incr(r.Context(), key).Result()
			if val == 1 {
				_ = h.rdb.Expire(r.Context(), key, loginAttemptsWindow).Err()
			}
		}
		respond.Error(w, err)
		return
	}
	if h.rdb != nil {
		_ = h.rdb.Del(r.Context(), key).Err()
	}

	token, err := SignToken(claims, h.authn.secret)
	if err != nil {
		respond.ErrorMessage(w, http.StatusInternalServerError, "failed to sign token")
		return
	}
	expiresIn := int64(time.Until(claims.ExpiresAt.Time).Seconds())
	h.setAuthCookie(w, token, expiresIn)

	respond.JSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   expiresIn,
		User:        u,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	tokenString, err := tokenFromRequest(r)
	if err != nil {
		respond.ErrorMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	claims, err := ParseToken(tokenString, h.authn.secret, PurposeAccess)
	if err != nil {
		respond.ErrorMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		respond.ErrorMessage(w, http.StatusBadRequest, "invalid token")
		return
	}

	if ttl := time.Until(claims.ExpiresAt.Time); ttl > 0 && h.rdb != nil {
		if err := h.rdb.Set(r.Context(), tokenBlacklistPrefix+claims.ID, "revoked", ttl).Err(); err != nil {
			h.logger.Printf("logout: blacklist token: %v", err)
			respond.ErrorMessage(w, http.StatusInternalServerError, "failed to logout")
			return
		}
	}
	h.clearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sub, ok := respond.Subject(w, r)
	if !ok {
		return
	}
	u, err := h.service.Profile(r.Context(), sub.UserID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	if err := h.service.ForgotPassword(r.Context(), req.Email, req.Mode); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusAccepted, map[string]string{"message": "reset instructions sent"})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetInput
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	if req.AccessToken == "" {
		req.AccessToken = r.URL.Query().Get("access_token")
	}
	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) setAuthCookie(w http.ResponseWriter, token string, expiresIn int64) {
	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookie,
	}
	if expiresIn > 0 {
		duration := time.Duration(expiresIn) * time.Second
		cookie.Expires = time.Now().Add(duration)
		cookie.MaxAge = int(duration.Seconds())
	}
	http.SetCookie(w, cookie)
}

func (h *Handler) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookie,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

func tokenFromRequest(r *http.Request) (string, error) {
	if token, err := extractBearerToken(r.Header.Get("Authorization")); err == nil {
		return token, nil
	}
	if cookie, err := r.Cookie(authCookieName); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token, nil
		}
	}
	return "", errTokenRequired
}

func extractBearerToken(header string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errTokenRequired
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errTokenRequired
	}
	return token, nil
}
