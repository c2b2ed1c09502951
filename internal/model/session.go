package model

// Session はブラウザ側から見た認証状態を表す。
// Tokenが空でないときに限りIsAuthenticatedがtrueになる。
// IsLoadingは初回の復元処理が終わるまでtrueで、その後はfalseのまま変わらない。
type Session struct {
	Token           string
	UserEmail       string
	IsAuthenticated bool
	IsLoading       bool
}

// Credentials はログイン・登録フォームの入力値。
// リクエスト処理中だけ保持し、永続化もログ出力もしない。
type Credentials struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// String はパスワードを伏せた文字列表現を返す。
func (c Credentials) String() string {
	return "Credentials{Email: " + c.Email + ", Password: ***}"
}
