package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trainchecker/internal/session"
	"github.com/hitoshi/trainchecker/internal/storage"
)

// TestRouterIntegration_CSRFTokenEndpoint はCSRFトークン取得エンドポイントが
// chi.Routerで正しく動作することを検証する。
func TestRouterIntegration_CSRFTokenEndpoint(t *testing.T) {
	r := chi.NewRouter()

	csrfConfig := CSRFConfig{CookieSecure: false}
	r.Get("/api/csrf-token", NewCSRFTokenHandler(csrfConfig).ServeHTTP)

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token == "" {
		t.Error("expected non-empty token")
	}
}

// TestRouterIntegration_SessionAndCSRFChain は
// Client -> Session -> CSRF のミドルウェアチェーンがchi.Routerで正しく動作することを検証する。
func TestRouterIntegration_SessionAndCSRFChain(t *testing.T) {
	base := storage.NewMemory(0)
	scoped := storage.Scoped(base, testClientID)
	scoped.SetItem(context.Background(), session.KeyToken, "router-token")
	scoped.SetItem(context.Background(), session.KeyUserEmail, "router@example.com")

	r := chi.NewRouter()

	csrfConfig := CSRFConfig{CookieSecure: false}

	r.Use(NewClientMiddleware(ClientConfig{}))
	r.Use(NewSessionMiddleware(base, slog.New(slog.DiscardHandler), session.Options{}))

	// CSRFトークン取得エンドポイント
	r.Get("/api/csrf-token", NewCSRFTokenHandler(csrfConfig).ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(NewCSRFMiddleware(csrfConfig))

		r.Get("/api/session", func(w http.ResponseWriter, r *http.Request) {
			store, _ := session.FromContext(r.Context())
			state, _ := store.Wait(r.Context())
			json.NewEncoder(w).Encode(map[string]string{"user_email": state.UserEmail})
		})

		r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
			store, _ := session.FromContext(r.Context())
			store.Wait(r.Context())
			store.Logout(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})
	})

	// テスト1: GET はCSRFなしで通り、保存済みのセッションが復元される
	t.Run("GET_session_restored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
		req.AddCookie(&http.Cookie{Name: clientCookieName, Value: testClientID})
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
		}
		var body map[string]string
		json.NewDecoder(w.Result().Body).Decode(&body)
		if body["user_email"] != "router@example.com" {
			t.Errorf("user_email = %q, want %q", body["user_email"], "router@example.com")
		}
	})

	// テスト2: POST はCSRFトークンなしで403
	t.Run("POST_logout_without_csrf", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		req.AddCookie(&http.Cookie{Name: clientCookieName, Value: testClientID})
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
		}
		if _, ok, _ := scoped.GetItem(context.Background(), session.KeyToken); !ok {
			t.Error("token should remain after rejected logout")
		}
	})

	// テスト3: POST はCSRFトークン付きで通り、保存済みのキーが削除される
	t.Run("POST_logout_with_csrf", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		req.AddCookie(&http.Cookie{Name: clientCookieName, Value: testClientID})
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "test-csrf-token"})
		req.Header.Set(csrfHeaderName, "test-csrf-token")
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusNoContent {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
		}
		for _, key := range []string{session.KeyToken, session.KeyUserEmail} {
			if _, ok, _ := scoped.GetItem(context.Background(), key); ok {
				t.Errorf("%s should be removed after logout", key)
			}
		}
	})

	// テスト4: 新しいブラウザにはクライアントCookieが発行される
	t.Run("new_browser_gets_client_cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		found := false
		for _, c := range w.Result().Cookies() {
			if c.Name == clientCookieName {
				found = true
			}
		}
		if !found {
			t.Error("expected client cookie on first visit")
		}
	})
}
