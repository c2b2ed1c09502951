// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// 画面表示用のメッセージに加え、原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, trains, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingInput       = "MISSING_INPUT"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodePasswordMismatch   = "PASSWORD_MISMATCH"
	ErrCodeRegistrationFailed = "REGISTRATION_FAILED"
	ErrCodeNoServicesFound    = "NO_SERVICES_FOUND"
	ErrCodeLookupFailed       = "LOOKUP_FAILED"
	ErrCodeTransient          = "TRANSIENT"
	ErrCodeMalformedService   = "MALFORMED_SERVICE"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// HasCode はerrのチェーン中に指定コードのAPIErrorが含まれるかを判定する。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// AsAPIError はerrのチェーンからAPIErrorを取り出す。
// 含まれない場合はfalseを返す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// NewMissingInputError は必須入力が空の場合のエラーを生成する。
func NewMissingInputError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingInput,
		Message:  message,
		Category: "validation",
		Action:   "Fill in every field and submit again.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password",
		Category: "auth",
		Action:   "Check your email address and password.",
	}
}

// NewPasswordMismatchError は確認用パスワードが一致しない場合のエラーを生成する。
func NewPasswordMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordMismatch,
		Message:  "Passwords do not match",
		Category: "validation",
		Action:   "Enter the same password in both fields.",
	}
}

// NewRegistrationFailedError は登録失敗エラーを生成する。
// サーバーからのメッセージが空の場合は汎用メッセージを使う。
func NewRegistrationFailedError(serverMessage string) *APIError {
	msg := serverMessage
	if msg == "" {
		msg = "Registration failed"
	}
	return &APIError{
		Code:     ErrCodeRegistrationFailed,
		Message:  msg,
		Category: "auth",
		Action:   "Check the details you entered and try again.",
	}
}

// NewNoServicesFoundError は該当列車が0件の場合のエラーを生成する。
// 通信エラーとは区別し、画面では中立的な「結果なし」として扱う。
func NewNoServicesFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNoServicesFound,
		Message:  "No train services found for the given route",
		Category: "trains",
		Action:   "Check the station codes or try another route.",
	}
}

// NewLookupFailedError は列車検索の失敗エラーを生成する。
func NewLookupFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeLookupFailed,
		Message:  fmt.Sprintf("Failed to fetch train services: %s", reason),
		Category: "trains",
		Action:   "Wait a moment and search again.",
	}
}

// NewTransientError は通信・解析失敗による一時的なエラーを生成する。
func NewTransientError() *APIError {
	return &APIError{
		Code:     ErrCodeTransient,
		Message:  "An error occurred. Please try again later.",
		Category: "system",
		Action:   "Wait a moment and try again.",
	}
}

// NewMalformedServiceError は発着駅情報を欠いた列車データを受け取った場合のエラーを生成する。
func NewMalformedServiceError(index int) *APIError {
	return &APIError{
		Code:     ErrCodeMalformedService,
		Message:  fmt.Sprintf("Train service #%d is missing its origin or destination", index+1),
		Category: "trains",
		Action:   "Try the search again later.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewUnauthorizedError は未認証アクセスのエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "You need to sign in first.",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// UpstreamStatusError は上流APIの非2xx応答を表す。
// Errにはユーザーへそのまま表示するAPIErrorが入る。
type UpstreamStatusError struct {
	StatusCode int
	Err        *APIError
}

// Error はerrorインターフェースを実装する。
func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Err.Error())
}

// Unwrap はHasCode/AsAPIErrorからAPIErrorを参照できるようにする。
func (e *UpstreamStatusError) Unwrap() error {
	return e.Err
}

// UpstreamStatus はerrのチェーンから上流APIのHTTPステータスを取り出す。
// 含まれない場合は0を返す。
func UpstreamStatus(err error) int {
	var upErr *UpstreamStatusError
	if errors.As(err, &upErr) {
		return upErr.StatusCode
	}
	return 0
}
