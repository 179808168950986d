package session

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Jaysandjay/ModernWebFinal/internal/auth"
)

// ContextIdentityKey は、ハンドラー間でログイン中のアカウント情報を共有するためのキーです。
const ContextIdentityKey = "session.identity"

const contextCSRFKey = "session.csrf"

const csrfHeader = "X-CSRF-Token"

// CurrentIdentity はリクエストコンテキストからログイン中のアカウントを取り出します。
// RequireLogin を通過していない場合は ok=false を返します。
func CurrentIdentity(c *gin.Context) (auth.Identity, bool) {
	value, exists := c.Get(ContextIdentityKey)
	if !exists {
		return auth.Identity{}, false
	}
	identity, ok := value.(auth.Identity)
	return identity, ok
}

// RequireLogin はセッションを検証するミドルウェアを返します。
// 有効なセッションが無い場合は 401 で打ち切ります。
// 通過時はアカウント情報をコンテキストに載せ、以降のハンドラーに明示的に渡します。
func RequireLogin(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := store.TokenFromRequest(c)
		record, err := store.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "セッションの確認に失敗しました。",
			})
			return
		}
		if record == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "ログインが必要です。",
			})
			return
		}

		c.Set(ContextIdentityKey, record.Identity)
		c.Set(contextCSRFKey, record.CSRFToken)
		c.Next()
	}
}

// VerifyCSRF は X-CSRF-Token ヘッダーを検証するミドルウェアです。
// RequireLogin の後ろに配置すること。
func VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		expected, ok := c.Get(contextCSRFKey)
		expectedToken, _ := expected.(string)
		if !ok || expectedToken == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_MISSING",
				"message": "CSRF トークンが設定されていません。",
			})
			return
		}

		received := c.GetHeader(csrfHeader)
		if subtle.ConstantTimeCompare([]byte(expectedToken), []byte(received)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_INVALID",
				"message": "CSRF トークンが一致しません。",
			})
			return
		}

		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
