package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, secret string) *Store {
	t.Helper()
	// 署名まわりのテストでは Redis に接続しない
	store, err := NewStore(redis.NewClient(&redis.Options{}), secret, time.Hour, false)
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	return store
}

func requestWithCookie(value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if value != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: value})
	}
	return req
}

func TestIssueCookieRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newTestStore(t, "test-secret")

	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	store.IssueCookie(ctx, "token-abc")

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	cookie := cookies[0]
	if cookie.Name != CookieName || !cookie.HttpOnly {
		t.Fatalf("unexpected cookie: %+v", cookie)
	}
	if !strings.HasPrefix(cookie.Value, "token-abc.") {
		t.Fatalf("unexpected cookie value: %s", cookie.Value)
	}

	ctx2, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx2.Request = requestWithCookie(cookie.Value)
	if got := store.TokenFromRequest(ctx2); got != "token-abc" {
		t.Fatalf("TokenFromRequest = %q, want token-abc", got)
	}
}

func TestTokenFromRequestRejectsTamperedSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newTestStore(t, "test-secret")

	signed := store.sign("token-abc")
	tampered := strings.Replace(signed, "token-abc.", "token-xyz.", 1)

	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = requestWithCookie(tampered)
	if got := store.TokenFromRequest(ctx); got != "" {
		t.Fatalf("expected empty token for tampered cookie, got %q", got)
	}
}

func TestTokenFromRequestRejectsWrongSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newTestStore(t, "test-secret")
	other := newTestStore(t, "other-secret")

	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = requestWithCookie(other.sign("token-abc"))
	if got := store.TokenFromRequest(ctx); got != "" {
		t.Fatalf("expected empty token for foreign signature, got %q", got)
	}
}

func TestTokenFromRequestMissingCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newTestStore(t, "test-secret")

	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = requestWithCookie("")
	if got := store.TokenFromRequest(ctx); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}

func TestClearCookieExpiresSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newTestStore(t, "test-secret")

	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	store.ClearCookie(ctx)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge >= 0 || cookies[0].Value != "" {
		t.Fatalf("cookie not cleared: %+v", cookies[0])
	}
}
