// Package session はセッショントークンとOAuthクライアントハンドルの
// プロセス内ストアを提供する。
//
// ストアは起動時に1つ構築され、必要とするハンドラーへ参照渡しされる。
// グローバル変数としては公開しない。
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/hitoshi/epimap/internal/model"
)

// ClientHandle はセッションごとのOAuthクライアントを表す。
// プロバイダー認証情報と認可コード交換で得たトークンペアをラップする。
// ストアが排他的に所有し、トークン削除時に一緒に破棄される。
type ClientHandle struct {
	conf  *oauth2.Config
	token *oauth2.Token
}

// NewClientHandle は指定されたOAuth設定のクライアントハンドルを生成する。
func NewClientHandle(conf *oauth2.Config) *ClientHandle {
	return &ClientHandle{conf: conf}
}

// AuthCodeURL はプロバイダーの認可URLを生成する。
func (h *ClientHandle) AuthCodeURL(state string) string {
	return h.conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange は認可コードをトークンペアに交換し、ハンドルに保存する。
func (h *ClientHandle) Exchange(ctx context.Context, code string) error {
	token, err := h.conf.Exchange(ctx, code)
	if err != nil {
		return err
	}
	h.token = token
	return nil
}

// Token は保存済みのトークンペアを返す。交換前はnil。
func (h *ClientHandle) Token() *oauth2.Token {
	return h.token
}

// HTTPClient は保存済みトークンで認証するHTTPクライアントを返す。
// リフレッシュトークンがある場合は自動更新される。
func (h *ClientHandle) HTTPClient(ctx context.Context) *http.Client {
	return h.conf.Client(ctx, h.token)
}

// State はトークンに紐づくセッション状態を表す。
// 公開プロファイルは初回取得後にメモ化される。
type State struct {
	Profile   *model.PublicProfile
	CreatedAt time.Time
}

// entry はストア内部のセッションエントリ。
type entry struct {
	client    *ClientHandle
	state     *State
	updatedAt time.Time
}

// defaultPendingTTL は未完了ログインエントリ（クライアントハンドルのみで
// セッション状態を持たない）の生存期間。コールバックが来ないまま放置された
// ログイン開始のエントリを回収する。stateクッキーの寿命より長めに取る。
// 確立済みセッションのttl=0無期限動作には影響しない。
const defaultPendingTTL = 10 * time.Minute

// Store はトークン -> (OAuthクライアントハンドル, セッション状態) のストア。
// 全操作を単一のミューテックスで直列化する。作成/取得/削除は低頻度パスであり、
// 細粒度ロックは不要。
//
// ttlが0の場合、セッションは明示的な削除まで生存する（既定の挙動）。
// ttl > 0 の場合、最終更新からttlを超えたエントリは取得時に不在扱いとなり、
// バックグラウンドスイープで削除される。
type Store struct {
	mu         sync.Mutex
	entries    map[string]*entry
	ttl        time.Duration
	pendingTTL time.Duration
	stopCh     chan struct{}
}

// NewStore は新しいStoreを生成し、期限切れエントリのスイープゴルーチンを
// 開始する。ttl=0でも未完了ログインエントリの回収は行われる。
func NewStore(ttl time.Duration) *Store {
	return newStore(ttl, defaultPendingTTL)
}

func newStore(ttl, pendingTTL time.Duration) *Store {
	s := &Store{
		entries:    make(map[string]*entry),
		ttl:        ttl,
		pendingTTL: pendingTTL,
		stopCh:     make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Stop はスイープゴルーチンを停止する。
func (s *Store) Stop() {
	close(s.stopCh)
}

// PutClient はトークンにOAuthクライアントハンドルを登録する。
// ログイン開始時、stateトークンをキーとして呼ばれる。
func (s *Store) PutClient(token string, h *ClientHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.liveEntry(token)
	if e == nil {
		e = &entry{}
		s.entries[token] = e
	}
	e.client = h
	e.updatedAt = time.Now()
}

// Client はトークンに紐づくクライアントハンドルを返す。
func (s *Store) Client(token string) (*ClientHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.liveEntry(token)
	if e == nil || e.client == nil {
		return nil, false
	}
	return e.client, true
}

// CreateSession はトークンに空のセッション状態を挿入する。
// 既存の状態は初期化される。
func (s *Store) CreateSession(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.liveEntry(token)
	if e == nil {
		e = &entry{}
		s.entries[token] = e
	}
	e.state = &State{CreatedAt: time.Now()}
	e.updatedAt = time.Now()
}

// Session はトークンに紐づくセッション状態のコピーを返す。
// 可変状態をロックの外へ出さないため、内部の*Stateは返さない。
func (s *Store) Session(token string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.liveEntry(token)
	if e == nil || e.state == nil {
		return State{}, false
	}
	return *e.state, true
}

// Profile はメモ化済みの公開プロファイルを返す。
// 2番目の戻り値はセッション状態の有無。セッションはあるが未取得の場合は
// (nil, true) を返す。
func (s *Store) Profile(token string) (*model.PublicProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.liveEntry(token)
	if e == nil || e.state == nil {
		return nil, false
	}
	return e.state.Profile, true
}

// SetProfile はセッション状態に公開プロファイルをメモ化する。
// セッションが存在しない場合はfalseを返す。
func (s *Store) SetProfile(token string, p *model.PublicProfile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.liveEntry(token)
	if e == nil || e.state == nil {
		return false
	}
	e.state.Profile = p
	e.updatedAt = time.Now()
	return true
}

// Delete はトークンのクライアントハンドルとセッション状態を同時に削除する。
// 単一ロック内で削除するため、片方だけが残る状態は外部から観測されない。
func (s *Store) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
}

// Len は現在のエントリ数を返す。テスト用。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// liveEntry は期限切れでないエントリを返す。期限切れはその場で削除する。
// 呼び出し側でロックを保持していること。
func (s *Store) liveEntry(token string) *entry {
	e, ok := s.entries[token]
	if !ok {
		return nil
	}
	if s.expired(e, time.Now()) {
		delete(s.entries, token)
		return nil
	}
	return e
}

// expired はエントリが期限切れかを判定する。
// セッション状態を持たないエントリは未完了ログインとしてpendingTTLで回収する。
func (s *Store) expired(e *entry, now time.Time) bool {
	if s.ttl > 0 && now.Sub(e.updatedAt) > s.ttl {
		return true
	}
	if e.state == nil && s.pendingTTL > 0 && now.Sub(e.updatedAt) > s.pendingTTL {
		return true
	}
	return false
}

// sweepLoop はバックグラウンドで期限切れエントリを定期的に削除する。
func (s *Store) sweepLoop() {
	interval := s.pendingTTL
	if s.ttl > 0 && s.ttl < interval {
		interval = s.ttl
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep は期限切れエントリを全て削除する。
func (s *Store) sweep() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for token, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, token)
		}
	}
}
