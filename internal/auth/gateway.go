// Package auth は外部Auth APIへのログイン・登録呼び出しを提供する。
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/trainchecker/internal/metrics"
	"github.com/hitoshi/trainchecker/internal/model"
	"github.com/hitoshi/trainchecker/internal/security"
)

const (
	loginPath    = "/api/v1/Auth/login"
	registerPath = "/api/v1/Auth/register"

	// maxResponseSize はレスポンスボディの読み取り上限。
	maxResponseSize = 1 << 20
)

// credentialsRequest はログイン・登録リクエストのボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Gateway はAuth APIのクライアント。
// リトライやトークン更新は行わず、1回の呼び出しで結果を返す。
type Gateway struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    metrics.Recorder
	sanitizer  *security.MessageSanitizer
}

// Option はGatewayの任意設定。
type Option func(*Gateway)

// WithMetrics は呼び出し結果の記録先を設定する。
func WithMetrics(rec metrics.Recorder) Option {
	return func(g *Gateway) {
		g.metrics = rec
	}
}

// WithSanitizer はサーバーメッセージのサニタイザーを設定する。
func WithSanitizer(s *security.MessageSanitizer) Option {
	return func(g *Gateway) {
		g.sanitizer = s
	}
}

// NewGateway はGatewayを生成する。
func NewGateway(httpClient *http.Client, baseURL string, logger *slog.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
		metrics:    metrics.Nop{},
		sanitizer:  security.NewMessageSanitizer(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Login はメールアドレスとパスワードでログインし、トークンを返す。
// メールアドレスはレスポンスから得られないため、呼び出し側が保持する。
func (g *Gateway) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", model.NewMissingInputError("Please enter your email and password.")
	}

	start := time.Now()
	status, body, err := g.post(ctx, loginPath, credentialsRequest{Email: email, Password: password})
	if err != nil {
		g.logger.Error("Auth APIへのログイン要求に失敗しました",
			slog.String("error", err.Error()),
		)
		g.record(metrics.APIAuthLogin, model.ErrCodeTransient, start)
		return "", fmt.Errorf("login request: %w", model.NewTransientError())
	}

	if !isSuccess(status) {
		g.logger.Info("ログインが拒否されました", slog.Int("http_status", status))
		g.record(metrics.APIAuthLogin, model.ErrCodeInvalidCredentials, start)
		return "", &model.UpstreamStatusError{StatusCode: status, Err: model.NewInvalidCredentialsError()}
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Token == "" {
		g.logger.Error("ログインレスポンスからトークンを取得できませんでした",
			slog.Int("http_status", status),
			slog.Bool("parse_error", err != nil),
		)
		g.record(metrics.APIAuthLogin, model.ErrCodeTransient, start)
		return "", fmt.Errorf("login response: %w", model.NewTransientError())
	}

	g.record(metrics.APIAuthLogin, "ok", start)
	return resp.Token, nil
}

// Register は新規アカウントを作成する。成功してもログインはしない。
func (g *Gateway) Register(ctx context.Context, email, password, confirmPassword string) error {
	if email == "" || password == "" {
		return model.NewMissingInputError("Please enter your email and password.")
	}
	if password != confirmPassword {
		return model.NewPasswordMismatchError()
	}

	start := time.Now()
	status, body, err := g.post(ctx, registerPath, credentialsRequest{Email: email, Password: password})
	if err != nil {
		g.logger.Error("Auth APIへの登録要求に失敗しました",
			slog.String("error", err.Error()),
		)
		g.record(metrics.APIAuthRegister, model.ErrCodeTransient, start)
		return fmt.Errorf("register request: %w", model.NewTransientError())
	}

	if !isSuccess(status) {
		msg := g.serverMessage(body)
		g.logger.Info("登録が拒否されました",
			slog.Int("http_status", status),
			slog.String("message", msg),
		)
		g.record(metrics.APIAuthRegister, model.ErrCodeRegistrationFailed, start)
		return &model.UpstreamStatusError{StatusCode: status, Err: model.NewRegistrationFailedError(msg)}
	}

	g.record(metrics.APIAuthRegister, "ok", start)
	return nil
}

// post はJSONボディをPOSTし、ステータスコードとレスポンスボディを返す。
// errは通信・読み取りの失敗のみを表す。
func (g *Gateway) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// serverMessage はエラーレスポンスの"message"を取り出してサニタイズする。
func (g *Gateway) serverMessage(body []byte) string {
	var m messageResponse
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	return g.sanitizer.Sanitize(m.Message)
}

func (g *Gateway) record(api, outcome string, start time.Time) {
	g.metrics.RecordUpstreamRequest(api, outcome, time.Since(start))
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
