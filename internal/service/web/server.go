package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/internal/shared/types"
)

//go:embed all:static
var staticFiles embed.FS

// --- DIAGNOSTIC HELPER: A listener that logs accepted connections ---
type loggingListener struct {
	net.Listener
}

func (l loggingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err == nil {
		logger.Debug().Msgf(" [WebServer DIAGNOSTIC] Connection accepted from: %s ", conn.RemoteAddr())
	}
	return conn, err
}

// basicAuthMiddleware 检查 web_user 和 web_password 是否已配置。
// 如果配置了，它将强制执行 HTTP Basic Authentication。
func basicAuthMiddleware(next http.Handler, user, pass string) http.Handler {
	// 如果用户名或密码未设置，则不启用认证，直接返回原始处理器
	if user == "" || pass == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Unauthorized.\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewMux builds the router for the results page, the REST API and the row stream.
func NewMux(conf types.WebConf, controller CheckerController, hub *Hub) (http.Handler, error) {
	handler := NewHandler(controller, hub)
	mux := http.NewServeMux()

	webUser := conf.WebUser
	webPassword := conf.WebPassword
	protect := func(f http.HandlerFunc) http.Handler {
		return basicAuthMiddleware(f, webUser, webPassword)
	}

	// --- 认证保护的 API ---
	mux.Handle("/api/proxies", protect(handler.HandleProxies))
	mux.Handle("/api/proxies/delete", protect(handler.HandleDeleteProxies))
	mux.Handle("/api/run", protect(handler.HandleRun))
	mux.Handle("/api/rows", protect(handler.HandleRows))

	// --- WebSocket Endpoint (公开，无需认证) ---
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	})

	// 公开的状态 API
	mux.HandleFunc("/api/status", handler.HandleStatus)

	// --- 静态文件和主页 ---
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to create sub filesystem for static assets: %w", err)
	}
	fileServer := http.FileServer(http.FS(staticFS))
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))

	// 主页需要认证
	rootHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		index, err := staticFiles.ReadFile("static/index.html")
		if err != nil {
			http.Error(w, "Could not load index.html", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(index)
	})
	mux.Handle("/", basicAuthMiddleware(rootHandler, webUser, webPassword))

	return mux, nil
}

// StartServer listens on the configured port and serves until ctx ends.
// A web_port of 0 disables the web host.
func StartServer(
	ctx context.Context,
	wg *sync.WaitGroup,
	cfg *types.Config,
	controller CheckerController,
	hub *Hub,
) error {
	if cfg.WebConf.WebPort <= 0 {
		logger.Warn().Msg("[WebServer] Web UI is disabled (web_port is 0 or not set).")
		return nil
	}

	mux, err := NewMux(cfg.WebConf, controller, hub)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.WebConf.WebPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start Web UI on %s: %w", addr, err)
	}

	logger.Info().Msgf("SUCCESS: Web UI is listening on http://%s", addr)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		// Wrap the original listener with our logging listener
		loggingL := loggingListener{Listener: listener}
		if err := srv.Serve(loggingL); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Web server error")
		}
		logger.Info().Msg("Web server stopped.")
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Web server shutdown incomplete")
		}
	}()

	return nil
}
