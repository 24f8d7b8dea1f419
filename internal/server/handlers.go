package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/ByLCY/certify/internal/pipeline"
	"github.com/ByLCY/certify/layout"
	"github.com/ByLCY/certify/renderer"
)

const pptxContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

func (s *Server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	req, err := s.certificateRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, hit, err := s.runner.Render(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := pipeline.FileName(pipeline.Brand(s.runner.Data(req.Data)), req.Format)
	w.Header().Set("Content-Type", req.Format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	_, _ = w.Write(out)
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	req, err := s.certificateRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, _, err := s.runner.Layout(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := layout.WriteDebug(w, result); err != nil {
		s.logger.Warn("write layout", "err", err)
	}
}

func (s *Server) handleSlides(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	tmpl, err := formFile(r, "template")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(tmpl) == 0 {
		s.writeError(w, r, badRequest("缺少 template 文件", nil))
		return
	}
	logo, err := formFile(r, "logo")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var values map[string]string
	if raw := strings.TrimSpace(r.FormValue("values")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			s.writeError(w, r, badRequest("values 需要是字符串 JSON 对象", err))
			return
		}
	}

	out, _, err := s.runner.FillSlides(r.Context(), pipeline.SlidesRequest{
		Template: tmpl,
		Logo:     logo,
		Values:   values,
		Accent:   r.FormValue("accent"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", pptxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="filled_template.pptx"`)
	_, _ = w.Write(out)
}

// certificateRequest 读取证书生成表单：background 必填，其余可选。
func (s *Server) certificateRequest(w http.ResponseWriter, r *http.Request) (pipeline.Request, error) {
	req := pipeline.Request{Sandboxed: true}
	if err := s.parseForm(w, r); err != nil {
		return req, err
	}
	bg, err := formFile(r, "background")
	if err != nil {
		return req, err
	}
	if len(bg) == 0 {
		return req, badRequest("缺少 background 文件", nil)
	}
	req.Background = bg
	if req.Logo, err = formFile(r, "logo"); err != nil {
		return req, err
	}

	tmpl, err := formFile(r, "template")
	if err != nil {
		return req, err
	}
	if len(tmpl) > 0 {
		req.Template = string(tmpl)
	} else {
		req.Template = r.FormValue("template")
	}

	if raw := strings.TrimSpace(r.FormValue("data")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Data); err != nil {
			return req, badRequest("data 需要是 JSON 对象", err)
		}
	}
	format, err := renderer.ParseFormat(r.FormValue("format"))
	if err != nil {
		return req, badRequest("format 无效", err)
	}
	req.Format = format
	req.Backend = r.FormValue("backend")
	if err := s.runner.Normalize(&req); err != nil {
		return req, err
	}
	return req, nil
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest(fmt.Sprintf("上传内容超过 %d MB", s.maxUpload>>20), nil)
		}
		return badRequest("需要 multipart/form-data 表单", err)
	}
	return nil
}

// formFile 读取上传文件；字段缺失时返回 nil, nil。
func formFile(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, badRequest("读取上传文件 "+field+" 失败", err)
	}
	defer func(f multipart.File) { _ = f.Close() }(f)
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, badRequest("读取上传文件 "+field+" 失败", err)
	}
	return data, nil
}
