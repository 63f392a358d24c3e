// Package auth はOAuth認証フローとセッションの確立を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/hitoshi/epimap/internal/model"
	"github.com/hitoshi/epimap/internal/session"
)

// ErrNotAuthenticated はトークンが未知、またはセッションが存在しない場合のエラー。
// ハンドラー側で403に変換される。
var ErrNotAuthenticated = errors.New("not authenticated")

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// NewOAuthConfig はセッションごとのoauth2.Configを生成する。
	NewOAuthConfig() *oauth2.Config
	// FetchProfile は認証済みクライアントで公開プロファイルを取得する。
	FetchProfile(ctx context.Context, client *http.Client) (*model.PublicProfile, error)
}

// Service は認証に関するビジネスロジックを提供する。
// セッションストアを排他的に操作する唯一のコンポーネント。
type Service struct {
	provider OAuthProvider
	store    *session.Store
}

// NewService はServiceを生成する。
func NewService(provider OAuthProvider, store *session.Store) *Service {
	return &Service{
		provider: provider,
		store:    store,
	}
}

// BeginLogin はログインフローを開始する。
// 新しいstateトークンを生成し、それをキーとするOAuthクライアントハンドルを
// ストアに登録したうえで、プロバイダーの認可URLを返す。
func (s *Service) BeginLogin() (state string, authURL string, err error) {
	state, err = generateStateToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate state token: %w", err)
	}

	handle := session.NewClientHandle(s.provider.NewOAuthConfig())
	s.store.PutClient(state, handle)

	return state, handle.AuthCodeURL(state), nil
}

// CompleteCallback は認可コードをトークンに交換し、stateトークンの
// セッション状態を確立する。
//
// 交換が成功した場合のみセッションを作成する。失敗した認可試行で
// 空セッションが確立されることはない。
func (s *Service) CompleteCallback(ctx context.Context, state, code string) error {
	handle, ok := s.store.Client(state)
	if !ok {
		return fmt.Errorf("no oauth client handle for state token")
	}

	if err := handle.Exchange(ctx, code); err != nil {
		// 失敗した交換のハンドルは残さない
		s.store.Delete(state)
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	s.store.CreateSession(state)

	slog.Info("oauth login completed")
	return nil
}

// Abort は失敗した認可試行のstateトークンをストアから取り除く。
func (s *Service) Abort(state string) {
	if state != "" {
		s.store.Delete(state)
	}
}

// Logout はトークンのセッション状態とクライアントハンドルを破棄する。
// 未知のトークンに対しては何もしない。
func (s *Service) Logout(token string) {
	s.store.Delete(token)
	slog.Info("user logged out")
}

// Profile はトークンの公開プロファイルを返す。
// セッションごとに初回のみプロバイダーへ問い合わせ、以降はメモ化した値を返す。
// トークンが未知、またはクライアントハンドルを持たない場合はErrNotAuthenticated。
func (s *Service) Profile(ctx context.Context, token string) (*model.PublicProfile, error) {
	// メモ化済みプロファイルの読み出しはストアのロック内で行う
	profile, ok := s.store.Profile(token)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	if profile != nil {
		return profile, nil
	}

	handle, ok := s.store.Client(token)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	profile, err := s.provider.FetchProfile(ctx, handle.HTTPClient(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}

	s.store.SetProfile(token, profile)
	return profile, nil
}

// HasSession はトークンにセッション状態が存在するかを返す。
// 開発用診断エンドポイントで使用する。
func (s *Service) HasSession(token string) bool {
	_, ok := s.store.Session(token)
	return ok
}

// generateStateToken は暗号的に安全なstateトークンを生成する。
func generateStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
