package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxMessageRunes は画面に出すサーバーメッセージの最大文字数。
const maxMessageRunes = 300

// MessageSanitizer は上流APIが返すエラーメッセージをプレーンテキストに変換する。
// bluemondayのStrictPolicyで全てのタグを除去する。
// 出力はhtml/templateで再度エスケープされるため、エンティティは元の文字に戻す。
type MessageSanitizer struct {
	policy *bluemonday.Policy
}

// NewMessageSanitizer はMessageSanitizerを生成する。
func NewMessageSanitizer() *MessageSanitizer {
	return &MessageSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、空白を整えて返す。
// nilレシーバーの場合は空白の整形のみ行う。
func (s *MessageSanitizer) Sanitize(msg string) string {
	if s != nil {
		msg = html.UnescapeString(s.policy.Sanitize(msg))
	}
	msg = strings.Join(strings.Fields(msg), " ")

	runes := []rune(msg)
	if len(runes) > maxMessageRunes {
		msg = string(runes[:maxMessageRunes]) + "…"
	}
	return msg
}
