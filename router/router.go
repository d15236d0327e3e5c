package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	authHandler "writingstuff/internal/auth"
	authService "writingstuff/internal/auth/service"
	docHandler "writingstuff/internal/document"
	docService "writingstuff/internal/document/service"
	"writingstuff/middleware"
	"writingstuff/pkg/logger"
	"writingstuff/pkg/metrics"
	"writingstuff/socket"
)

type Deps struct {
	Auth           *authService.AuthService
	Documents      *docService.DocumentService
	Hub            *socket.Hub
	Limiter        *middleware.RateLimiter
	MaxUploadBytes int64
	RequestTimeout time.Duration
	AllowedOrigins []string
	// Ping reports whether the backing store is reachable. Nil means always.
	Ping func(ctx context.Context) error
}

func Setup(d Deps) http.Handler {
	mux := http.NewServeMux()

	auth := middleware.Auth(d.Auth)
	timeout := func(h http.Handler) http.Handler {
		if d.RequestTimeout <= 0 {
			return h
		}
		return http.TimeoutHandler(h, d.RequestTimeout, "Request timed out")
	}
	protected := func(h http.HandlerFunc) http.Handler {
		return timeout(auth(h))
	}
	limited := func(h http.HandlerFunc) http.Handler {
		return timeout(auth(d.Limiter.Middleware(h)))
	}

	// Auth
	ah := authHandler.NewAuthHandler(d.Auth)
	mux.Handle("POST /auth/register", timeout(http.HandlerFunc(ah.Register)))
	mux.Handle("POST /auth/login", timeout(http.HandlerFunc(ah.Login)))
	mux.Handle("GET /auth/me", protected(ah.Me))

	// Documents
	dh := docHandler.NewDocumentHandler(d.Documents, d.MaxUploadBytes)
	mux.Handle("GET /documents", protected(dh.ListDocuments))
	mux.Handle("POST /documents", protected(dh.CreateDocument))
	mux.Handle("POST /documents/upload", protected(dh.UploadDocument))
	mux.Handle("GET /documents/{id}", protected(dh.GetDocument))
	mux.Handle("GET /documents/{id}/file", protected(dh.GetFile))
	mux.Handle("POST /documents/{id}/save", protected(dh.SaveDocument))
	mux.Handle("DELETE /documents/{id}", protected(dh.DeleteDocument))
	mux.Handle("POST /documents/{id}/improve", limited(dh.ImproveText))
	mux.Handle("POST /documents/{id}/search", limited(dh.SearchDocument))
	mux.Handle("POST /documents/{id}/summarize", limited(dh.SummarizeDocument))

	// WebSocket; TimeoutHandler cannot hijack, so no deadline here.
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(d.Hub, w, r, middleware.UserID(r.Context()))
	})
	mux.Handle("GET /ws", auth(wsHandler))

	mux.HandleFunc("GET /health", health(d.Ping))
	mux.Handle("GET /metrics", metrics.Handler())

	return middleware.Observe(middleware.CORS(d.AllowedOrigins)(mux))
}

func health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				logger.Sugar.Warnf("Health check failed: %v", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}
}
