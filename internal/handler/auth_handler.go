package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/epimap/internal/auth"
	"github.com/hitoshi/epimap/internal/metrics"
	"github.com/hitoshi/epimap/internal/model"
)

const (
	// tokenCookieName はセッショントークンのCookie名。
	tokenCookieName = "token"
	// stateCookieName はOAuthフロー中のstate保持Cookie名。
	stateCookieName = "oauth_state"
	// stateCookieMaxAge はstate Cookieの有効期間（10分）。
	stateCookieMaxAge = 600
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	BeginLogin() (state string, authURL string, err error)
	CompleteCallback(ctx context.Context, state, code string) error
	Abort(state string)
	Logout(token string)
	Profile(ctx context.Context, token string) (*model.PublicProfile, error)
	HasSession(token string) bool
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// FrontendURL はコールバック後のリダイレクト先。
	FrontendURL  string
	CookieDomain string
	CookieSecure bool

	// SessionTTL が0の場合、トークンCookieはブラウザセッションCookieになる。
	SessionTTL time.Duration
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service   AuthServiceInterface
	config    AuthHandlerConfig
	logger    *slog.Logger
	collector metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, logger *slog.Logger, collector metrics.MetricsCollector) *AuthHandler {
	return &AuthHandler{
		service:   service,
		config:    config,
		logger:    logger,
		collector: collector,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, authURL, err := h.service.BeginLogin()
	if err != nil {
		h.logger.Error("failed to begin oauth login", slog.String("error", err.Error()))
		writeInternalError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback はOAuthコールバックを処理する。
// 失敗した認可試行ではセッションを確立せず、フロントエンドへリダイレクトする。
// GET /auth/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	state := query.Get("state")

	// プロバイダーがエラーを返した場合（アクセス拒否等）
	if errParam := query.Get("error"); errParam != "" {
		h.logger.Warn("oauth provider returned error", slog.String("error", errParam))
		h.failCallback(w, r, state)
		return
	}

	// stateの検証（CSRF対策）
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || state == "" || stateCookie.Value != state {
		h.logger.Warn("oauth state mismatch")
		h.failCallback(w, r, state)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.logger.Warn("oauth callback missing authorization code")
		h.failCallback(w, r, state)
		return
	}

	if err := h.service.CompleteCallback(r.Context(), state, code); err != nil {
		h.logger.Error("oauth code exchange failed", slog.String("error", err.Error()))
		h.failCallback(w, r, state)
		return
	}

	h.clearStateCookie(w)

	// セッショントークンをHTTP Only Cookieで配布する
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    state,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(h.config.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	if h.collector != nil {
		h.collector.RecordLoginSuccess()
	}
	http.Redirect(w, r, h.config.FrontendURL, http.StatusFound)
}

// failCallback は失敗した認可試行を後始末してフロントエンドへ戻す。
func (h *AuthHandler) failCallback(w http.ResponseWriter, r *http.Request, state string) {
	h.service.Abort(state)
	h.clearStateCookie(w)
	if h.collector != nil {
		h.collector.RecordLoginFailure()
	}
	http.Redirect(w, r, h.config.FrontendURL, http.StatusFound)
}

func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Logout はセッションを破棄する。トークンの有無にかかわらず200を返す。
// GET /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(tokenCookieName); err == nil && cookie.Value != "" {
		h.service.Logout(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

// Info は現在のログインユーザーの公開プロファイルを返す。
// 未認証の場合は403を返す。
// GET /auth/info
func (h *AuthHandler) Info(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(tokenCookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Not authenticated"})
		return
	}

	profile, err := h.service.Profile(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "Not authenticated"})
			return
		}
		h.logger.Error("failed to fetch user profile", slog.String("error", err.Error()))
		writeInternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
