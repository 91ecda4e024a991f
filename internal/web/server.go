// Package web gin server
package web

import (
	"net/http"
	"net/url"
	"strings"

	ginMw "github.com/Laisky/gin-middlewares/v7"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/file-vault/file-vault/internal/web/files/controller"
	"github.com/file-vault/file-vault/internal/web/files/service"
	"github.com/file-vault/file-vault/library/log"
)

var (
	server = gin.New()
)

// RunServer starts the HTTP API and blocks until the listener exits.
func RunServer(addr string, svc *service.Service) {
	server.Use(
		gin.Recovery(),
		ginMw.NewLoggerMiddleware(
			ginMw.WithLogger(log.Logger.Named("gin")),
		),
		allowCORS,
	)
	if !gconfig.Shared.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	server.Any("/health", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "hello, world")
	})

	controller.NewFiles(svc).RegisterRoutes(server)

	log.Logger.Info("listening on http", zap.String("addr", addr))
	log.Logger.Panic("httpServer exit", zap.Error(server.Run(addr)))
}

func allowCORS(ctx *gin.Context) {
	origin := ctx.Request.Header.Get("Origin")
	allowedOrigin := ""

	if origin != "" {
		parsedOriginURL, err := url.Parse(origin)
		if err == nil {
			host := strings.ToLower(parsedOriginURL.Hostname())
			for _, allowed := range gconfig.Shared.GetStringSlice("settings.server.allowed_origins") {
				allowed = strings.ToLower(strings.TrimSpace(allowed))
				if host == allowed || strings.HasSuffix(host, "."+allowed) {
					allowedOrigin = origin
					break
				}
			}
		}
	}

	if allowedOrigin != "" {
		ctx.Header("Access-Control-Allow-Origin", allowedOrigin)
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, X-CSRF-Token, X-Requested-With")
		ctx.Header("Access-Control-Max-Age", "86400") // 24 hours
		ctx.Header("Vary", "Origin")

		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
	} else if origin != "" && ctx.Request.Method == http.MethodOptions {
		// Deny preflight from origins outside the allow list.
		ctx.AbortWithStatus(http.StatusForbidden)
		return
	}

	ctx.Next()
}
