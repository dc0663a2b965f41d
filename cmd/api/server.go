package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"landRegistry/pkg/app"
	"landRegistry/pkg/config"
)

// Server HTTP服务器
type Server struct {
	server  *http.Server
	wire    *app.Wire
	config  *config.Config
	router  *http.ServeMux
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	started bool
}

// routes lists every endpoint for the startup banner.
var routes = []string{
	"GET    /api/health",
	"POST   /api/v1/documents",
	"GET    /api/v1/uploads/{id}",
	"GET    /api/v1/documents/{cid}",
	"GET    /api/v1/documents/{cid}/content",
	"POST   /api/v1/auth/login",
	"POST   /api/v1/lands",
	"GET    /api/v1/submissions",
	"GET    /api/v1/submissions/{id}",
}

// NewServer 创建新的HTTP服务器
func NewServer(w *app.Wire) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		wire:   w,
		config: w.Config,
		router: http.NewServeMux(),
		ctx:    ctx,
		cancel: cancel,
	}
	srv.registerRoutes()

	srv.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", w.Config.HTTP.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Minute, // 文件上传需要更长时间
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return srv
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.logMiddleware(s.corsMiddleware(s.router))
}

// registerRoutes 注册所有路由
func (s *Server) registerRoutes() {
	s.router.HandleFunc("GET /api/health", s.handleHealth)

	// 文档上传
	s.router.HandleFunc("POST /api/v1/documents", s.handleDocumentUpload)
	s.router.HandleFunc("GET /api/v1/uploads/{id}", s.handleUploadStatus)
	s.router.HandleFunc("GET /api/v1/documents/{cid}", s.handleDocumentInfo)
	s.router.HandleFunc("GET /api/v1/documents/{cid}/content", s.handleDocumentContent)

	// 登录与登记
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.router.HandleFunc("POST /api/v1/lands", s.handleRegisterLand)

	// 提交记录
	s.router.HandleFunc("GET /api/v1/submissions", s.handleSubmissionList)
	s.router.HandleFunc("GET /api/v1/submissions/{id}", s.handleSubmission)
}

// Start 启动HTTP服务器
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.mu.Unlock()

	fmt.Printf("HTTP API server listening on :%d\n", s.config.HTTP.Port)
	fmt.Println("Available endpoints:")
	for _, r := range routes {
		fmt.Printf("  %s\n", r)
	}
	fmt.Println()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown 关闭HTTP服务器
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	fmt.Println("Shutting down HTTP API server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	// 取消仍在进行的上传
	s.cancel()

	fmt.Println("HTTP API server stopped")
	return nil
}

// corsMiddleware CORS中间件
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logMiddleware 请求日志中间件
func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logrus.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("HTTP request")
	})
}
