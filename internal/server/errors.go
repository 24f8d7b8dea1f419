package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ByLCY/certify/internal/pipeline"
)

// inputError 表示请求本身有误，响应 400。
type inputError struct {
	msg string
	err error
}

func (e *inputError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *inputError) Unwrap() error { return e.err }

func badRequest(msg string, err error) error {
	return &inputError{msg: msg, err: err}
}

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, middleware.RequestIDKey, id)
}

// writeError 以纯文本返回错误：输入错误为 400，其余为 500 且不暴露细节。
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ie *inputError
	if errors.As(err, &ie) || errors.Is(err, pipeline.ErrInvalidInput) {
		s.logger.Debug("bad request", "path", r.URL.Path, "err", err, "request_id", middleware.GetReqID(r.Context()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	s.logger.Error("request failed", "path", r.URL.Path, "err", err, "request_id", middleware.GetReqID(r.Context()))
	http.Error(w, "内部错误", http.StatusInternalServerError)
}
