package view

// Layout は全画面共通のヘッダー情報。
type Layout struct {
	Title           string
	CSRFToken       string
	UserEmail       string
	IsAuthenticated bool
}

// LoginPage はログイン画面のデータ。
type LoginPage struct {
	Layout
	Email  string
	Error  string
	Notice string
}

// RegisterPage は登録画面のデータ。
type RegisterPage struct {
	Layout
	Email string
	Error string
}

// MainPage は検索画面のデータ。
// NoServicesはエラーではなく「該当なし」の中立的な表示に使う。
type MainPage struct {
	Layout
	Origin      string
	Destination string
	Result      *ResultView
	NoServices  bool
	Error       string
}
