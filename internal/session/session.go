// Package session はブラウザごとのログイン状態（トークンとメールアドレス）を管理する。
//
// Storeは1リクエスト（ページ表示1回）につき1つ生成され、クライアントストレージから
// 一度だけ状態を復元する。復元が終わるまではIsLoadingがtrueのままとなり、
// ルートガードは復元完了を待ってから判定する。
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/trainchecker/internal/metrics"
	"github.com/hitoshi/trainchecker/internal/model"
	"github.com/hitoshi/trainchecker/internal/storage"
)

// クライアントストレージ上のキー
const (
	KeyToken     = "token"
	KeyUserEmail = "userEmail"
)

// セッションイベント名（メトリクスのラベル）
const (
	EventRestoreAuthenticated = "restore_authenticated"
	EventRestoreAnonymous     = "restore_anonymous"
	EventLogin                = "login"
	EventLogout               = "logout"
)

// Options はStoreの動作オプション。
type Options struct {
	// DiscardExpiredTokens がtrueの場合、expが過去のJWTは復元時に破棄する。
	DiscardExpiredTokens bool
	Metrics              metrics.Recorder
	// Now は現在時刻の取得関数。テストで差し替える。
	Now func() time.Time
}

// Store はセッション状態を保持し、クライアントストレージへ永続化する。
// 状態の変更はmuで直列化される。
type Store struct {
	storage storage.Store
	logger  *slog.Logger
	opts    Options

	mu    sync.RWMutex
	state model.Session
	// touched は復元中にLogin/Logoutが行われたことを示す。
	touched bool

	once  sync.Once
	ready chan struct{}
}

// New はStoreを生成する。生成直後はIsLoading=trueの未認証状態。
func New(st storage.Store, logger *slog.Logger, opts Options) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		storage: st,
		logger:  logger,
		opts:    opts,
		state:   model.Session{IsLoading: true},
		ready:   make(chan struct{}),
	}
}

// Restore は永続化されたトークンとメールアドレスを読み込む。
// 両方が存在する場合のみ認証済みとなる。何が見つかったかに関わらず、
// ローディング状態を一度だけ終了する。2回目以降の呼び出しは何もしない。
func (s *Store) Restore(ctx context.Context) {
	s.once.Do(func() {
		s.restore(ctx)
	})
}

func (s *Store) restore(ctx context.Context) {
	defer close(s.ready)

	token := s.read(ctx, KeyToken)
	email := s.read(ctx, KeyUserEmail)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.touched {
		// 復元より新しいLogin/Logoutの状態を優先する
		s.state.IsLoading = false
		return
	}

	if token != "" && email != "" && s.opts.DiscardExpiredTokens && tokenExpired(token, s.opts.Now()) {
		s.logger.Info("discarding expired session token")
		s.remove(ctx)
		token, email = "", ""
	}

	if token != "" && email != "" {
		s.state = model.Session{
			Token:           token,
			UserEmail:       email,
			IsAuthenticated: true,
		}
		s.opts.Metrics.RecordSessionEvent(EventRestoreAuthenticated)
		return
	}

	s.state = model.Session{}
	s.opts.Metrics.RecordSessionEvent(EventRestoreAnonymous)
}

// read はキーの値を読み込む。読み込みエラーは値なしとして扱う。
func (s *Store) read(ctx context.Context, key string) string {
	v, ok, err := s.storage.GetItem(ctx, key)
	if err != nil {
		s.logger.Warn("failed to read session storage",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// Login はメモリ上の状態を認証済みにし、トークンとメールアドレスを永続化する。
// トークンが空の場合はLogoutと同じ動作になる。
func (s *Store) Login(ctx context.Context, token, email string) {
	if token == "" {
		s.Logout(ctx)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.touched = true
	s.state = model.Session{
		Token:           token,
		UserEmail:       email,
		IsAuthenticated: true,
		IsLoading:       s.state.IsLoading,
	}

	if err := s.storage.SetItem(ctx, KeyToken, token); err != nil {
		s.logger.Warn("failed to persist session token", slog.String("error", err.Error()))
	}
	if err := s.storage.SetItem(ctx, KeyUserEmail, email); err != nil {
		s.logger.Warn("failed to persist session email", slog.String("error", err.Error()))
	}

	s.opts.Metrics.RecordSessionEvent(EventLogin)
}

// Logout はメモリ上の状態を消去し、永続化された値を削除する。
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touched = true
	s.state = model.Session{IsLoading: s.state.IsLoading}
	s.remove(ctx)

	s.opts.Metrics.RecordSessionEvent(EventLogout)
}

// remove は永続化された2つのキーを削除する。呼び出し側でmuを保持すること。
func (s *Store) remove(ctx context.Context) {
	for _, key := range []string{KeyToken, KeyUserEmail} {
		if err := s.storage.RemoveItem(ctx, key); err != nil {
			s.logger.Warn("failed to remove session storage",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

// State は現在のセッションのスナップショットを返す。
func (s *Store) State() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ready はローディング状態が終わるとcloseされるチャネルを返す。
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Wait は復元の完了かctxの終了まで待ち、その時点のスナップショットを返す。
func (s *Store) Wait(ctx context.Context) (model.Session, error) {
	select {
	case <-s.ready:
		return s.State(), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

type contextKey struct{}

// NewContext はStoreを格納したコンテキストを返す。
func NewContext(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext はコンテキストからStoreを取り出す。
func FromContext(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(contextKey{}).(*Store)
	return s, ok && s != nil
}
