// Package server 提供证书生成的 HTTP 接口：上传背景图与 logo 生成 PNG/PDF，
// 或上传 PPTX 模板填充占位符。
package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ByLCY/certify/config"
	"github.com/ByLCY/certify/internal/pipeline"
)

// 表单内存上限，超出部分写入临时文件。
const multipartMemory = 8 << 20

// Server 处理证书相关请求。
type Server struct {
	runner    *pipeline.Runner
	logger    *log.Logger
	maxUpload int64
}

// New 返回挂好中间件与路由的 http.Handler。
func New(cfg config.Server, runner *pipeline.Runner, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		runner:    runner,
		logger:    logger,
		maxUpload: cfg.MaxUploadBytes(),
	}
	if s.maxUpload <= 0 {
		s.maxUpload = config.Default().Server.MaxUploadBytes()
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/v1", func(r chi.Router) {
		r.Post("/certificates", s.handleCertificate)
		r.Post("/layout", s.handleLayout)
		r.Post("/slides", s.handleSlides)
	})
	return r
}

// requestID 为每个请求分配 uuid（或沿用客户端传入的 X-Request-ID），
// 写入响应头并放入 chi 的 RequestIDKey，便于 middleware.GetReqID 读取。
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := r.Context()
		ctx = contextWithRequestID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
			"remote", r.RemoteAddr)
	})
}
