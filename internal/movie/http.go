package movie

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Jaysandjay/ModernWebFinal/internal/session"
	"github.com/Jaysandjay/ModernWebFinal/internal/storage"
)

// CatalogService は映画CRUDを提供するサービスが実装します。
type CatalogService interface {
	Create(ctx context.Context, ownerID uuid.UUID, in Input) (*Movie, error)
	List(ctx context.Context, viewerID uuid.UUID) ([]Movie, error)
	Get(ctx context.Context, id uuid.UUID) (*Movie, error)
	Update(ctx context.Context, id uuid.UUID, in Input) (*Movie, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetPosterPath(ctx context.Context, id uuid.UUID, path string) error
}

// ContextMovieKey は、認可ゲートが取得済みの映画をハンドラーへ引き渡すためのキーです。
const ContextMovieKey = "movie.record"

// ポスター画像として受け付けるMIMEタイプです。
var allowedPosterTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// RequireOwner は対象の映画の所有者であることを検証するミドルウェアを返します。
// RequireLogin の後ろに配置すること。
// 映画が存在しない場合は 404、ログイン中でも所有者でない場合は 403 で打ち切ります。
// 通過時は取得済みの映画をコンテキストに載せ、ハンドラーでの再取得を不要にします。
func RequireOwner(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "映画IDの形式が正しくありません。",
			})
			return
		}

		m, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
					"code":    "MOVIE_NOT_FOUND",
					"message": "指定された映画は存在しません。",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "サーバー内部でエラーが発生しました。",
			})
			return
		}

		identity, ok := session.CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "ログインが必要です。",
			})
			return
		}

		// 所有権はアカウントのキー（ID）で比較する
		if m.OwnerID != identity.ID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "PERMISSION_DENIED",
				"message": "この映画を編集・削除する権限がありません。",
			})
			return
		}

		c.Set(ContextMovieKey, m)
		c.Next()
	}
}

// ownedMovie は RequireOwner が載せた映画をコンテキストから取り出します。
func ownedMovie(c *gin.Context) (*Movie, bool) {
	value, exists := c.Get(ContextMovieKey)
	if !exists {
		return nil, false
	}
	m, ok := value.(*Movie)
	return m, ok
}

// ListHandler は GET /api/movies のハンドラーを返します。
func ListHandler(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := session.CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "ログインが必要です。",
			})
			return
		}

		movies, err := svc.List(c.Request.Context(), identity.ID)
		if err != nil {
			respondWithError(c, err)
			return
		}

		items := make([]gin.H, len(movies))
		for i := range movies {
			items[i] = movieJSON(&movies[i])
		}
		c.JSON(http.StatusOK, gin.H{"movies": items})
	}
}

// CreateHandler は POST /api/movies のハンドラーを返します。
func CreateHandler(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := session.CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "ログインが必要です。",
			})
			return
		}

		var in Input
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "映画情報を JSON で送ってください。",
			})
			return
		}

		m, err := svc.Create(c.Request.Context(), identity.ID, in)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, movieJSON(m))
	}
}

// GetHandler は GET /api/movies/:id のハンドラーを返します。
func GetHandler(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "映画IDの形式が正しくありません。",
			})
			return
		}

		m, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, movieJSON(m))
	}
}

// UpdateHandler は PUT /api/movies/:id のハンドラーを返します。
// RequireOwner の通過を前提とし、所有権の再確認は行いません。
func UpdateHandler(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := ownedMovie(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "サーバー内部でエラーが発生しました。",
			})
			return
		}

		var in Input
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "映画情報を JSON で送ってください。",
			})
			return
		}

		m, err := svc.Update(c.Request.Context(), current.ID, in)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, movieJSON(m))
	}
}

// DeleteHandler は DELETE /api/movies/:id のハンドラーを返します。
// RequireOwner の通過を前提とし、所有権の再確認は行いません。
func DeleteHandler(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := ownedMovie(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "サーバー内部でエラーが発生しました。",
			})
			return
		}

		if err := svc.Delete(c.Request.Context(), current.ID); err != nil {
			respondWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// UploadPosterHandler は POST /api/movies/:id/poster のハンドラーを返します。
// RequireOwner の通過を前提とします。
func UploadPosterHandler(svc CatalogService, store storage.Storage, maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := ownedMovie(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "サーバー内部でエラーが発生しました。",
			})
			return
		}

		header, err := c.FormFile("poster")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "multipart/form-data の poster フィールドで画像を送信してください。",
			})
			return
		}
		if maxSize > 0 && header.Size > maxSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"code":    "LIMIT_EXCEEDED",
				"message": "ポスター画像のサイズ上限を超えています。",
			})
			return
		}

		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "アップロードされたファイルを読み込めませんでした。",
			})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "アップロードされたファイルの読み込みに失敗しました。",
			})
			return
		}

		// 拡張子ではなく内容でファイル種別を判定する
		mtype := mimetype.Detect(data)
		ext, allowed := allowedPosterTypes[mtype.String()]
		if !allowed {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "UNSUPPORTED_MEDIA",
				"message": "ポスターは JPEG / PNG / WebP 画像のみ受け付けます。",
			})
			return
		}

		path := "posters/" + current.ID.String() + ext
		if err := store.Save(c.Request.Context(), path, data); err != nil {
			respondWithError(c, err)
			return
		}

		// 拡張子が変わった場合は古いファイルを残さない
		if current.PosterPath != "" && current.PosterPath != path {
			_ = store.Delete(c.Request.Context(), current.PosterPath)
		}

		if err := svc.SetPosterPath(c.Request.Context(), current.ID, path); err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"posterUrl": posterURL(current.ID)})
	}
}

// PosterHandler は GET /api/movies/:id/poster のハンドラーを返します。
func PosterHandler(svc CatalogService, store storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "映画IDの形式が正しくありません。",
			})
			return
		}

		m, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			respondWithError(c, err)
			return
		}
		if m.PosterPath == "" {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "POSTER_NOT_FOUND",
				"message": "ポスター画像が登録されていません。",
			})
			return
		}

		file, err := store.Open(c.Request.Context(), m.PosterPath)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "POSTER_NOT_FOUND",
				"message": "ポスター画像が見つかりませんでした。",
			})
			return
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ポスター画像の読み込みに失敗しました。",
			})
			return
		}

		mtype, err := mimetype.DetectFile(file.Name())
		contentType := "application/octet-stream"
		if err == nil {
			contentType = mtype.String()
		}

		c.Header("Cache-Control", "no-store")
		c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
	}
}

func respondWithError(c *gin.Context, err error) {
	var violations ValidationErrors
	switch {
	case errors.As(err, &violations):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":   "VALIDATION_FAILED",
			"errors": violations,
		})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "MOVIE_NOT_FOUND",
			"message": "指定された映画は存在しません。",
		})
	case errors.Is(err, ErrNameTaken):
		c.JSON(http.StatusConflict, gin.H{
			"code":    "NAME_TAKEN",
			"message": "同じタイトルの映画が既に登録されています。",
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

func movieJSON(m *Movie) gin.H {
	payload := gin.H{
		"id":          m.ID,
		"name":        m.Name,
		"description": m.Description,
		"year":        m.Year,
		"genre":       m.Genre,
		"ownerId":     m.OwnerID,
		"createdAt":   m.CreatedAt,
		"updatedAt":   m.UpdatedAt,
	}
	if m.Rating != nil {
		payload["rating"] = *m.Rating
	}
	if m.PosterPath != "" {
		payload["posterUrl"] = posterURL(m.ID)
	}
	return payload
}

func posterURL(id uuid.UUID) string {
	return "/api/movies/" + id.String() + "/poster"
}
