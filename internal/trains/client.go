// Package trains は外部Train APIから発着駅間の列車一覧を取得する。
package trains

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/trainchecker/internal/metrics"
	"github.com/hitoshi/trainchecker/internal/model"
	"github.com/hitoshi/trainchecker/internal/security"
)

const (
	// maxResponseSize はレスポンスボディの読み取り上限。
	maxResponseSize = 5 << 20

	// defaultFailureMessage はサーバーがmessageを返さなかった場合の理由。
	defaultFailureMessage = "Something went wrong"
)

// Client はTrain APIのクライアント。キャッシュは持たず、検索ごとに1回呼び出す。
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    metrics.Recorder
	sanitizer  *security.MessageSanitizer
}

// Option はClientの任意設定。
type Option func(*Client)

// WithMetrics は呼び出し結果の記録先を設定する。
func WithMetrics(rec metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = rec
	}
}

// WithSanitizer はサーバーメッセージのサニタイザーを設定する。
func WithSanitizer(s *security.MessageSanitizer) Option {
	return func(c *Client) {
		c.sanitizer = s
	}
}

// NewClient はClientを生成する。
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
		metrics:    metrics.Nop{},
		sanitizer:  security.NewMessageSanitizer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup は発駅から着駅への列車一覧を取得する。
// 0件の場合は通信失敗と区別してNO_SERVICES_FOUNDを返す。
func (c *Client) Lookup(ctx context.Context, originCode, destinationCode string) (*model.TrainQueryResult, error) {
	q := model.TrainQuery{
		OriginCode:      strings.TrimSpace(originCode),
		DestinationCode: strings.TrimSpace(destinationCode),
	}
	if q.OriginCode == "" || q.DestinationCode == "" {
		return nil, model.NewMissingInputError("Please enter both Origin and Destination codes.")
	}

	start := time.Now()
	result, err := c.fetch(ctx, q)

	outcome := "ok"
	if apiErr, ok := model.AsAPIError(err); ok {
		outcome = apiErr.Code
	}
	c.metrics.RecordUpstreamRequest(metrics.APITrainLookup, outcome, time.Since(start))

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) fetch(ctx context.Context, q model.TrainQuery) (*model.TrainQueryResult, error) {
	reqURL := fmt.Sprintf("%s/api/v1/trains/%s/to/%s",
		c.baseURL,
		url.PathEscape(q.OriginCode),
		url.PathEscape(q.DestinationCode),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", model.NewLookupFailedError(err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Train APIの呼び出しに失敗しました",
			slog.String("origin", q.OriginCode),
			slog.String("destination", q.DestinationCode),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("train lookup request: %w", model.NewLookupFailedError(describeTransportError(err)))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("train lookup read: %w", model.NewLookupFailedError(err.Error()))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := c.serverMessage(body)
		c.logger.Warn("Train APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("origin", q.OriginCode),
			slog.String("destination", q.DestinationCode),
			slog.String("message", reason),
		)
		return nil, &model.UpstreamStatusError{
			StatusCode: resp.StatusCode,
			Err:        model.NewLookupFailedError(reason),
		}
	}

	var result model.TrainQueryResult
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("Train APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("train lookup decode: %w", model.NewLookupFailedError("invalid response from server"))
	}

	if len(result.TrainServices) == 0 {
		return nil, model.NewNoServicesFoundError()
	}

	for i, svc := range result.TrainServices {
		if len(svc.Origin) == 0 || len(svc.Destination) == 0 {
			c.logger.Warn("発着駅のない列車データを受け取りました",
				slog.Int("index", i),
				slog.String("operator", svc.Operator),
			)
			return nil, model.NewMalformedServiceError(i)
		}
	}

	return &result, nil
}

// serverMessage はエラーレスポンスの"message"を返す。無い場合は既定の理由。
func (c *Client) serverMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return defaultFailureMessage
	}
	if msg := c.sanitizer.Sanitize(m.Message); msg != "" {
		return msg
	}
	return defaultFailureMessage
}

// describeTransportError は画面に出す通信エラーの理由を返す。
// 接続先URLなどの内部情報は含めない。
func describeTransportError(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return "request timed out"
	}
	return "could not reach the train service"
}
