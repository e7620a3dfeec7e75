package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/postbook/internal/model"
	"github.com/hitoshi/postbook/internal/policy"
)

// mockAuthenticator はSessionAuthenticator/TokenAuthenticatorのモック。
type mockAuthenticator struct {
	sessionFn func(ctx context.Context, sessionID string) (policy.Caller, error)
	tokenFn   func(ctx context.Context, key string) (policy.Caller, error)
}

func (m *mockAuthenticator) AuthenticateSession(ctx context.Context, sessionID string) (policy.Caller, error) {
	return m.sessionFn(ctx, sessionID)
}

func (m *mockAuthenticator) AuthenticateToken(ctx context.Context, key string) (policy.Caller, error) {
	return m.tokenFn(ctx, key)
}

// captureCaller は次のハンドラーで見えた呼び出し元を記録する。
func captureCaller(got *policy.Caller, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		*got = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestCallerFromContext_DefaultsToAnonymous(t *testing.T) {
	if c := CallerFromContext(context.Background()); c.IsAuthenticated() {
		t.Errorf("caller = %+v, want anonymous", c)
	}
}

func TestSessionAuthMiddleware(t *testing.T) {
	authn := &mockAuthenticator{
		sessionFn: func(ctx context.Context, sessionID string) (policy.Caller, error) {
			switch sessionID {
			case "valid":
				return policy.AuthenticatedAs(7), nil
			case "broken":
				return policy.Anonymous, errors.New("db down")
			default:
				return policy.Anonymous, model.NewUnauthenticatedError()
			}
		},
	}

	tests := []struct {
		name       string
		cookie     string
		wantUserID int64
	}{
		{name: "no cookie", cookie: "", wantUserID: 0},
		{name: "valid session", cookie: "valid", wantUserID: 7},
		{name: "expired session", cookie: "expired", wantUserID: 0},
		{name: "lookup failure", cookie: "broken", wantUserID: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got policy.Caller
			called := false
			h := NewSessionAuthMiddleware(authn)(captureCaller(&got, &called))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if !called {
				t.Fatal("session middleware should never block a request")
			}
			if got.UserID != tt.wantUserID {
				t.Errorf("UserID = %d, want %d", got.UserID, tt.wantUserID)
			}
		})
	}
}

func TestTokenAuthMiddleware(t *testing.T) {
	authn := &mockAuthenticator{
		tokenFn: func(ctx context.Context, key string) (policy.Caller, error) {
			if key == "good" {
				return policy.AuthenticatedAs(3), nil
			}
			return policy.Anonymous, model.NewInvalidTokenError()
		},
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUserID int64
	}{
		{name: "no header", header: "", wantStatus: http.StatusOK, wantUserID: 0},
		{name: "token scheme", header: "Token good", wantStatus: http.StatusOK, wantUserID: 3},
		{name: "bearer scheme", header: "Bearer good", wantStatus: http.StatusOK, wantUserID: 3},
		{name: "lowercase scheme", header: "bearer good", wantStatus: http.StatusOK, wantUserID: 3},
		{name: "other scheme ignored", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusOK, wantUserID: 0},
		{name: "invalid token", header: "Token nope", wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got policy.Caller
			called := false
			h := NewTokenAuthMiddleware(authn)(captureCaller(&got, &called))

			req := httptest.NewRequest(http.MethodGet, "/api/users/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				if called {
					t.Error("handler should not run with an invalid token")
				}
				var body ErrorResponseBody
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body.Code != model.ErrCodeUnauthenticated {
					t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthenticated)
				}
				return
			}
			if got.UserID != tt.wantUserID {
				t.Errorf("UserID = %d, want %d", got.UserID, tt.wantUserID)
			}
		})
	}
}

func TestTokenAuthMiddleware_LookupFailureIs500(t *testing.T) {
	authn := &mockAuthenticator{
		tokenFn: func(ctx context.Context, key string) (policy.Caller, error) {
			return policy.Anonymous, errors.New("db down")
		},
	}
	h := NewTokenAuthMiddleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestRequireLoginMiddleware(t *testing.T) {
	h := NewRequireLoginMiddleware("/auth/login/")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("anonymous is redirected with next", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts/new/?x=1", nil))

		if w.Code != http.StatusFound {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusFound)
		}
		want := "/auth/login/?next=%2Fposts%2Fnew%2F%3Fx%3D1"
		if got := w.Header().Get("Location"); got != want {
			t.Errorf("Location = %q, want %q", got, want)
		}
	})

	t.Run("authenticated passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/posts/new/", nil)
		req = req.WithContext(ContextWithCaller(req.Context(), policy.AuthenticatedAs(1)))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})
}
