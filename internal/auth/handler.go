package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionManager はログイン成立後のセッション発行と破棄を担います。
// 実装は internal/session が提供します。
type SessionManager interface {
	Create(ctx context.Context, identity Identity) (token, csrfToken string, err error)
	Destroy(ctx context.Context, token string) error
	IssueCookie(c *gin.Context, token string)
	ClearCookie(c *gin.Context)
	TokenFromRequest(c *gin.Context) string
}

const csrfHeader = "X-CSRF-Token"

// Handler は認証まわりのHTTPハンドラーをまとめます。
type Handler struct {
	svc      *Service
	sessions SessionManager
}

// NewHandler は認証ハンドラーを作成します。
func NewHandler(svc *Service, sessions SessionManager) *Handler {
	return &Handler{svc: svc, sessions: sessions}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register は POST /api/auth/register のハンドラーです。
// 登録が成功してもセッションは作成しません。ログインは別途行います。
func (h *Handler) Register(c *gin.Context) {
	var req RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "name, email, password, confirmPassword を JSON で送ってください。",
		})
		return
	}

	identity, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		var violations ValidationErrors
		switch {
		case errors.As(err, &violations):
			c.JSON(http.StatusBadRequest, gin.H{
				"code":   "VALIDATION_FAILED",
				"errors": violations,
			})
		case errors.Is(err, ErrEmailTaken):
			// 重複を明かさない。他の作成失敗と同じ応答にする
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "REGISTRATION_FAILED",
				"message": MsgCannotCreate,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "REGISTRATION_FAILED",
				"message": MsgCannotCreate,
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":    identity.ID,
		"name":  identity.Name,
		"email": identity.Email,
	})
}

// Login は POST /api/auth/login のハンドラーです。
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "email と password を JSON で送ってください。",
		})
		return
	}

	identity, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var violations ValidationErrors
		switch {
		case errors.As(err, &violations):
			c.JSON(http.StatusBadRequest, gin.H{
				"code":   "VALIDATION_FAILED",
				"errors": violations,
			})
		case errors.Is(err, ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "INVALID_CREDENTIALS",
				"message": MsgInvalidCredentials,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "サーバー内部でエラーが発生しました。",
			})
		}
		return
	}

	token, csrfToken, err := h.sessions.Create(c.Request.Context(), *identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_CREATE_FAILED",
			"message": "セッションの作成に失敗しました。",
		})
		return
	}

	h.sessions.IssueCookie(c, token)
	c.Header(csrfHeader, csrfToken)
	c.JSON(http.StatusOK, gin.H{
		"id":    identity.ID,
		"name":  identity.Name,
		"email": identity.Email,
	})
}

// Logout は POST /api/auth/logout のハンドラーです。
// セッションをサーバー側から削除するため、失効は即時かつ全体に波及します。
func (h *Handler) Logout(c *gin.Context) {
	token := h.sessions.TokenFromRequest(c)
	if err := h.sessions.Destroy(c.Request.Context(), token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_DESTROY_FAILED",
			"message": "セッションの削除に失敗しました。",
		})
		return
	}
	h.sessions.ClearCookie(c)
	c.Status(http.StatusNoContent)
}
