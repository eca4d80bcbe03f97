package main

import (
	"log"
	"log/slog"

	"github.com/chaos-io/bgstrip/config"
	"github.com/chaos-io/bgstrip/pipeline"
	"github.com/chaos-io/bgstrip/pipeline/rembg"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config:", err)
	}

	previews := pipeline.NewPreviewManager()
	remover := rembg.NewInferenceRemover(cfg.RembgBaseURL, cfg.RembgTimeout)
	srv := newServer(cfg, previews, remover)

	// 定时回收空闲会话和遗留句柄
	c := cron.New()
	if _, err := c.AddFunc(cfg.SweepSpec, func() {
		sessions := srv.sessions.sweep(cfg.SessionTTL)
		// 会话回收后仍残留的句柄兜底清掉
		orphans := previews.SweepOlderThan(2 * cfg.SessionTTL)
		slog.Info("janitor sweep", "sessions", sessions, "orphans", orphans, "live", previews.Live())
	}); err != nil {
		log.Fatal("invalid sweep spec:", err)
	}
	c.Start()
	defer c.Stop()

	r := gin.Default()
	srv.routes(r)

	slog.Info("bgstrip listening", "port", cfg.Port, "rembg", cfg.RembgBaseURL)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("server exited:", err)
	}
}
