package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ByLCY/certify/config"
	"github.com/ByLCY/certify/internal/pipeline"
)

func newTestServer(t *testing.T, maxUploadMB int) http.Handler {
	t.Helper()
	cfg := config.Default()
	if maxUploadMB > 0 {
		cfg.Server.MaxUploadMB = maxUploadMB
	}
	logger := log.New(io.Discard)
	runner := pipeline.NewRunner(cfg.Render, nil, time.Hour, logger)
	return New(cfg.Server, runner, logger)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type part struct {
	field    string
	filename string // 为空表示普通字段
	data     []byte
}

func multipartRequest(t *testing.T, path string, parts ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		var w io.Writer
		var err error
		if p.filename != "" {
			w, err = mw.CreateFormFile(p.field, p.filename)
		} else {
			w, err = mw.CreateFormField(p.field)
		}
		if err != nil {
			t.Fatalf("create part %s: %v", p.field, err)
		}
		if _, err := w.Write(p.data); err != nil {
			t.Fatalf("write part %s: %v", p.field, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := serve(newTestServer(t, 0), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	if _, err := uuid.Parse(rec.Header().Get("X-Request-ID")); err != nil {
		t.Fatalf("X-Request-ID = %q: %v", rec.Header().Get("X-Request-ID"), err)
	}
}

func TestRequestIDIsKept(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", id)
	rec := serve(newTestServer(t, 0), req)
	if got := rec.Header().Get("X-Request-ID"); got != id {
		t.Fatalf("X-Request-ID = %q, want %q", got, id)
	}
}

func TestCertificatePNG(t *testing.T) {
	h := newTestServer(t, 0)
	req := multipartRequest(t, "/v1/certificates",
		part{field: "background", filename: "bg.png", data: pngBytes(t, 320, 226)},
		part{field: "data", data: []byte(`{"brand":"Acme"}`)},
	)
	rec := serve(h, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="Acme_certificate.png"`) {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("X-Cache = %q", rec.Header().Get("X-Cache"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("body is not a PNG")
	}
}

func TestCertificatePDFDefaultBrand(t *testing.T) {
	req := multipartRequest(t, "/v1/certificates",
		part{field: "background", filename: "bg.png", data: pngBytes(t, 160, 113)},
		part{field: "format", data: []byte("pdf")},
		part{field: "backend", data: []byte("canvas")},
	)
	rec := serve(newTestServer(t, 0), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "Shell_certificate.pdf") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("body is not a PDF")
	}
}

func TestCertificateBadInput(t *testing.T) {
	h := newTestServer(t, 0)
	bg := part{field: "background", filename: "bg.png", data: pngBytes(t, 64, 45)}
	cases := map[string]*http.Request{
		"missing background": multipartRequest(t, "/v1/certificates", part{field: "data", data: []byte(`{}`)}),
		"bad data":           multipartRequest(t, "/v1/certificates", bg, part{field: "data", data: []byte(`[1,2]`)}),
		"bad format":         multipartRequest(t, "/v1/certificates", bg, part{field: "format", data: []byte("gif")}),
		"bad backend":        multipartRequest(t, "/v1/certificates", bg, part{field: "backend", data: []byte("svg")}),
		"bad template":       multipartRequest(t, "/v1/certificates", bg, part{field: "template", data: []byte("doc x {")}),
		"corrupt background": multipartRequest(t, "/v1/certificates", part{field: "background", filename: "bg.png", data: []byte("nope")}),
		"not multipart":      httptest.NewRequest(http.MethodPost, "/v1/certificates", strings.NewReader("x")),
	}
	for name, req := range cases {
		rec := serve(h, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d: %s", name, rec.Code, rec.Body.String())
		}
	}
}

func TestCertificateTemplateCannotReadServerFiles(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "secret.png")
	if err := os.WriteFile(secret, pngBytes(t, 37, 23), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	templates := map[string]string{
		"absolute background": fmt.Sprintf("doc T v1 {\n  canvas background %q {\n    text x 1 y 1 w 50 h 10 { \"hi\" }\n  }\n}\n", secret),
		"escaping logo": "doc T v1 {\n  canvas background \"built-in:background\" {\n" +
			"    logo src \"../secret.png\" x 1 y 1 w 10 h 10\n  }\n}\n",
	}
	h := newTestServer(t, 0)
	for name, tmpl := range templates {
		for _, path := range []string{"/v1/certificates", "/v1/layout"} {
			rec := serve(h, multipartRequest(t, path,
				part{field: "background", filename: "bg.png", data: pngBytes(t, 64, 45)},
				part{field: "template", data: []byte(tmpl)},
			))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("%s %s: status = %d: %s", name, path, rec.Code, rec.Body.String())
			}
		}
	}
}

func TestUploadLimit(t *testing.T) {
	h := newTestServer(t, 1)
	big := make([]byte, 2<<20)
	rec := serve(h, multipartRequest(t, "/v1/certificates", part{field: "background", filename: "bg.png", data: big}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLayoutJSON(t *testing.T) {
	req := multipartRequest(t, "/v1/layout",
		part{field: "background", filename: "bg.png", data: pngBytes(t, 320, 226)},
	)
	rec := serve(newTestServer(t, 0), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Canvas struct {
			Width  int `json:"width"`
			Height int `json:"height"`
			Texts  []struct {
				Content string `json:"content"`
			} `json:"texts"`
		} `json:"canvas"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Canvas.Width != 320 || got.Canvas.Height != 226 || len(got.Canvas.Texts) != 5 {
		t.Fatalf("layout = %+v", got.Canvas)
	}
}

func minimalPPTX(t *testing.T) []byte {
	t.Helper()
	const ns = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
		`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/></Types>`},
		{"ppt/presentation.xml", `<?xml version="1.0" encoding="UTF-8"?><p:presentation ` + ns + `/>`},
		{"ppt/slides/slide1.xml", `<?xml version="1.0" encoding="UTF-8"?><p:sld ` + ns + `><p:cSld><p:spTree>` +
			`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>` +
			`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr><p:spPr/>` +
			`<p:txBody><a:bodyPr/><a:p><a:r><a:t>Well done {RestaurantName}</a:t></a:r></a:p></p:txBody></p:sp>` +
			`</p:spTree></p:cSld></p:sld>`},
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			t.Fatalf("create %s: %v", p.name, err)
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			t.Fatalf("write %s: %v", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestSlides(t *testing.T) {
	req := multipartRequest(t, "/v1/slides",
		part{field: "template", filename: "t.pptx", data: minimalPPTX(t)},
		part{field: "values", data: []byte(`{"RestaurantName":"Cafe Nero"}`)},
		part{field: "accent", data: []byte("#00FF00")},
	)
	rec := serve(newTestServer(t, 0), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "filled_template.pptx") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("response is not a zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != "ppt/slides/slide1.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open slide: %v", err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if !strings.Contains(string(data), "Well done Cafe Nero") {
			t.Fatalf("placeholder not replaced: %s", data)
		}
		return
	}
	t.Fatalf("slide1.xml missing from response")
}

func TestSlidesBadInput(t *testing.T) {
	h := newTestServer(t, 0)
	cases := map[string]*http.Request{
		"missing template": multipartRequest(t, "/v1/slides", part{field: "accent", data: []byte("#000")}),
		"garbage template": multipartRequest(t, "/v1/slides", part{field: "template", filename: "t.pptx", data: []byte("zip?")}),
		"bad values": multipartRequest(t, "/v1/slides",
			part{field: "template", filename: "t.pptx", data: minimalPPTX(t)},
			part{field: "values", data: []byte(`{"a":1}`)}),
	}
	for name, req := range cases {
		if rec := serve(h, req); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d: %s", name, rec.Code, rec.Body.String())
		}
	}
}
