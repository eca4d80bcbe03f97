package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/chaos-io/bgstrip/config"
	"github.com/chaos-io/bgstrip/pipeline"
	"github.com/chaos-io/bgstrip/pipeline/rembg"
	"github.com/chaos-io/bgstrip/util"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const sessionHeader = "X-Session-ID"

const invalidTypeMessage = "only image files are supported"

type server struct {
	cfg        config.Config
	previews   *pipeline.PreviewManager
	sessions   *sessionStore
	removalSem *semaphore.Weighted
	limiters   sync.Map // ip -> *rate.Limiter
}

func newServer(cfg config.Config, previews *pipeline.PreviewManager, remover rembg.Remover) *server {
	return &server{
		cfg:        cfg,
		previews:   previews,
		sessions:   newSessionStore(previews, remover),
		removalSem: semaphore.NewWeighted(cfg.MaxConcurrentRemovals),
	}
}

func (s *server) routes(r *gin.Engine) {
	r.GET("/health", s.handleHealth)

	api := r.Group("/api", s.rateLimit())
	api.POST("/image", s.handleUpload)
	api.POST("/image/url", s.handleUploadURL)
	api.GET("/state", s.handleState)
	api.POST("/reset", s.handleReset)
	api.GET("/download", s.handleDownload)
	api.GET("/preview/:ref", s.handlePreview)
}

// session 解析/补发会话，响应头里回写会话 ID
func (s *server) session(c *gin.Context) *pipeline.Processor {
	proc, id := s.sessions.get(c.GetHeader(sessionHeader))
	c.Header(sessionHeader, id)
	return proc
}

func (s *server) handleUpload(c *gin.Context) {
	proc := s.session(c)

	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image file"})
		return
	}
	if header.Size > s.cfg.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxUploadBytes),
		})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image file"})
		return
	}
	defer func() {
		_ = f.Close()
	}()

	blob, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image file"})
		return
	}

	s.process(c, proc, header.Filename, header.Header.Get("Content-Type"), blob)
}

type uploadURLReq struct {
	URL string `json:"url" binding:"required,url"`
}

func (s *server) handleUploadURL(c *gin.Context) {
	proc := s.session(c)

	var req uploadURLReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	blob, contentType, err := util.DownloadBlob(c.Request.Context(), req.URL, s.cfg.MaxUploadBytes)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch image"})
		return
	}

	s.process(c, proc, req.URL, contentType, blob)
}

// process 两条上传路径共用的校验与流水线入口
func (s *server) process(c *gin.Context, proc *pipeline.Processor, name, declaredType string, blob []byte) {
	// 声明类型缺失时嗅探内容
	if declaredType == "" {
		declaredType = mimetype.Detect(blob).String()
	}

	if err := s.removalSem.Acquire(c.Request.Context(), 1); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is busy"})
		return
	}
	defer s.removalSem.Release(1)

	if err := proc.SelectFile(c.Request.Context(), name, declaredType, blob); err != nil {
		if errors.Is(err, pipeline.ErrInvalidInputType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": invalidTypeMessage})
			return
		}
		snap := proc.Snapshot()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": snap.Error, "state": snap})
		return
	}

	c.JSON(http.StatusOK, proc.Snapshot())
}

func (s *server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.session(c).Snapshot())
}

func (s *server) handleReset(c *gin.Context) {
	proc := s.session(c)
	proc.Reset()
	c.JSON(http.StatusOK, proc.Snapshot())
}

func (s *server) handleDownload(c *gin.Context) {
	name, data, err := s.session(c).Download()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no result to download"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "image/png", data)
}

func (s *server) handlePreview(c *gin.Context) {
	maxSize, err := strconv.Atoi(c.DefaultQuery("max", "512"))
	if err != nil || maxSize <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max"})
		return
	}

	thumb, err := s.previews.Thumbnail(c.Param("ref"), maxSize)
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownRef) {
			c.JSON(http.StatusNotFound, gin.H{"error": "preview not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "preview unavailable"})
		return
	}

	c.Data(http.StatusOK, "image/png", thumb)
}

func (s *server) handleHealth(c *gin.Context) {
	created, released := s.previews.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"sessions":         s.sessions.len(),
		"previewsCreated":  created,
		"previewsReleased": released,
		"previewsLive":     s.previews.Live(),
	})
}

func (s *server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, _ := s.limiters.LoadOrStore(c.ClientIP(),
			rate.NewLimiter(rate.Every(s.cfg.RateLimitEvery), s.cfg.RateLimitBurst))
		if !v.(*rate.Limiter).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
