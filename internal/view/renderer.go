// Package view はHTMLテンプレートと画面用のビューモデルを提供する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templatesFS embed.FS

// テンプレート名
const (
	PageLogin    = "login"
	PageRegister = "register"
	PageMain     = "main"
)

// Renderer は埋め込みテンプレートを描画する。
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer はテンプレートを読み込んでRendererを生成する。
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("root").ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render は指定テンプレートを描画する。
// 途中で失敗した場合に部分的な出力が残らないよう、バッファに描画してから書き込む。
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
