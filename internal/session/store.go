// Package session はサーバーサイドのセッション管理を提供します。
// セッション本体は Redis に保存し、Cookie には署名付きの不透明トークンのみを載せます。
// 署名なしの自己完結トークンではないため、破棄は即時かつ全リクエストに波及します。
package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Jaysandjay/ModernWebFinal/internal/auth"
)

// CookieName はセッショントークンを運ぶCookie名です。
const CookieName = "mc_session"

const sessionKeyPrefix = "session:"

// Record はセッションに紐づくサーバーサイドの状態です。
// Identity はログイン時点のスナップショットで、次のログインまで再検証しません。
type Record struct {
	Identity  auth.Identity `json:"identity"`
	CSRFToken string        `json:"csrfToken"`
	IssuedAt  time.Time     `json:"issuedAt"`
}

// Store はセッショントークンと Record の対応表を Redis 上で管理します。
type Store struct {
	rdb    *redis.Client
	secret []byte
	ttl    time.Duration
	secure bool
}

// NewStore はセッションストアを作成します。
// secret は Cookie 値の改ざん検知（HMAC署名）に使います。
func NewStore(rdb *redis.Client, secret string, ttl time.Duration, secure bool) (*Store, error) {
	if rdb == nil {
		return nil, errors.New("redis client is nil")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Store{
		rdb:    rdb,
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
	}, nil
}

// Create は新しいセッションを発行し、トークンとCSRFトークンを返します。
func (s *Store) Create(ctx context.Context, identity auth.Identity) (token, csrfToken string, err error) {
	token, err = generateToken()
	if err != nil {
		return "", "", err
	}
	csrfToken, err = generateToken()
	if err != nil {
		return "", "", err
	}

	record := Record{
		Identity:  identity,
		CSRFToken: csrfToken,
		IssuedAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(&record)
	if err != nil {
		return "", "", err
	}
	if err := s.rdb.Set(ctx, sessionKey(token), payload, s.ttl).Err(); err != nil {
		return "", "", err
	}
	return token, csrfToken, nil
}

// Resolve はトークンからセッションを引きます。存在しない・期限切れの場合は nil を返します。
func (s *Store) Resolve(ctx context.Context, token string) (*Record, error) {
	if token == "" {
		return nil, nil
	}
	data, err := s.rdb.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Destroy はセッションを即時無効化します。トークンが既に無効でもエラーにしません。
func (s *Store) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.rdb.Del(ctx, sessionKey(token)).Err()
}

// MaxAgeSeconds は Cookie の MaxAge に利用する秒数を返します。
func (s *Store) MaxAgeSeconds() int {
	return int(s.ttl.Seconds())
}

// IssueCookie は署名付きトークンをセッションCookieとして発行します。
func (s *Store) IssueCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    s.sign(token),
		Path:     "/",
		MaxAge:   s.MaxAgeSeconds(),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearCookie はセッションCookieを削除します。
func (s *Store) ClearCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// TokenFromRequest はCookieからトークンを取り出し、署名を検証して返します。
// Cookieが無い・署名が一致しない場合は空文字を返します。
func (s *Store) TokenFromRequest(c *gin.Context) string {
	value, err := c.Cookie(CookieName)
	if err != nil {
		return ""
	}
	token, sig, ok := strings.Cut(value, ".")
	if !ok {
		return ""
	}
	expected := s.signature(token)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(sig)) != 1 {
		return ""
	}
	return token
}

func (s *Store) sign(token string) string {
	return token + "." + s.signature(token)
}

func (s *Store) signature(token string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}
