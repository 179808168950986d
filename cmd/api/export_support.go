package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/Jaysandjay/ModernWebFinal/internal/export"
	"github.com/Jaysandjay/ModernWebFinal/internal/jobs"
	"github.com/Jaysandjay/ModernWebFinal/internal/session"
)

type createExportRequest struct {
	Format string `json:"format"`
}

// createExportHandler は POST /api/exports のハンドラーを返します。
// 件数が閾値以下なら同期で成果物を返し、超える場合はジョブをキューに投入します。
func createExportHandler(deps *routeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := session.CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "ログインが必要です。",
			})
			return
		}

		var req createExportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "format を JSON で送ってください。",
			})
			return
		}

		manifest, err := deps.exportService.PrepareJob(c.Request.Context(), identity.ID, export.Format(req.Format))
		if err != nil {
			respondExportError(c, err)
			return
		}

		if shouldProcessAsync(manifest.RecordCount, deps.cfg.AsyncThresholdRecords) {
			if _, err := deps.jobManager.Enqueue(c.Request.Context(), manifest); err != nil {
				_ = deps.exportService.DiscardJob(manifest.JobID)
				c.JSON(http.StatusInternalServerError, gin.H{
					"code":    "INTERNAL_ERROR",
					"message": "エクスポートジョブの投入に失敗しました。",
				})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{
				"jobId":  manifest.JobID,
				"status": jobs.StatusQueued,
			})
			return
		}

		// 少件数は同期で実行してそのまま返す
		result, err := deps.exportService.RunJob(c.Request.Context(), manifest.JobID, nil)
		if err != nil {
			respondExportError(c, err)
			return
		}
		defer func() {
			_ = result.Cleanup()
		}()

		file, err := os.Open(result.OutputPath)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "成果物の読み込みに失敗しました。",
			})
			return
		}
		defer file.Close()

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.OutputFilename))
		c.DataFromReader(http.StatusOK, result.OutputSize, result.ContentType, file, nil)
	}
}

// exportStatusHandler は GET /api/exports/:id のハンドラーを返します。
// ジョブの存在有無と所有権で 404 / 403 を区別します。
func exportStatusHandler(deps *routeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, ok := ownedJobRecord(c, deps)
		if !ok {
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"jobId":       record.JobID,
			"format":      record.Format,
			"status":      record.Status,
			"progress":    record.Progress,
			"downloadUrl": record.DownloadURL,
			"meta":        record.Meta,
			"error":       record.Error,
			"createdAt":   record.CreatedAt,
			"updatedAt":   record.UpdatedAt,
		})
	}
}

// exportDownloadHandler は GET /api/exports/:id/download のハンドラーを返します。
func exportDownloadHandler(deps *routeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, ok := ownedJobRecord(c, deps)
		if !ok {
			return
		}

		if record.Status != jobs.StatusSucceeded {
			c.JSON(http.StatusConflict, gin.H{
				"code":    "JOB_NOT_READY",
				"message": "エクスポートがまだ完了していません。",
			})
			return
		}

		result, file, err := deps.exportService.OpenResultFile(record.JobID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "RESULT_NOT_FOUND",
				"message": "成果物が見つかりませんでした。期限切れの可能性があります。",
			})
			return
		}
		defer file.Close()

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.OutputFilename))
		c.DataFromReader(http.StatusOK, result.OutputSize, result.ContentType, file, nil)
	}
}

// ownedJobRecord はジョブを取得し、呼び出し元が所有者であることを検証します。
// 失敗時はレスポンスを書き込み済みで (nil, false) を返します。
func ownedJobRecord(c *gin.Context, deps *routeDeps) (*jobs.Record, bool) {
	identity, ok := session.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "UNAUTHORIZED",
			"message": "ログインが必要です。",
		})
		return nil, false
	}

	record, err := deps.jobManager.GetOwnedRecord(c.Request.Context(), c.Param("id"), identity.ID)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "指定されたジョブは存在しません。",
			})
		case errors.Is(err, jobs.ErrJobNotOwned):
			c.JSON(http.StatusForbidden, gin.H{
				"code":    "PERMISSION_DENIED",
				"message": "このジョブを参照する権限がありません。",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ジョブ情報の取得に失敗しました。",
			})
		}
		return nil, false
	}
	return record, true
}

// shouldProcessAsync は対象件数に応じて非同期処理へ切り替えるかを判定します。
func shouldProcessAsync(recordCount, threshold int) bool {
	if threshold <= 0 {
		return false
	}
	return recordCount > threshold
}

func respondExportError(c *gin.Context, err error) {
	var apiErr *export.Error
	if errors.As(err, &apiErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "INTERNAL_ERROR",
		"message": "エクスポート処理に失敗しました。",
	})
}
