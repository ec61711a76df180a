package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/draw"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/maskcloud/pkg/cache"
	"github.com/matzehuels/maskcloud/pkg/errors"
	"github.com/matzehuels/maskcloud/pkg/pipeline"
	"github.com/matzehuels/maskcloud/pkg/store"
)

func maskPNG(t *testing.T, w, h int, fill image.Image) []byte {
	t.Helper()
	m := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(m, m.Bounds(), fill, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type upload struct {
	field, filename string
	data            []byte
}

func multipartRequest(t *testing.T, fields map[string]string, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(f.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/generate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestServer(st store.Store) *Server {
	logger := log.New(io.Discard)
	runner := pipeline.NewRunner(cache.NewMemoryCache(), nil, logger)
	return New(Config{Defaults: pipeline.Options{MaxWords: 5}}, runner, st, logger)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

const sampleText = "gopher gopher gopher cloud cloud mask words"

func TestGenerate(t *testing.T) {
	st := store.NewMemoryStore(0)
	s := newTestServer(st)
	mask := upload{fieldMask, "mask.png", maskPNG(t, 120, 80, image.Black)}

	rec := serve(s, multipartRequest(t, map[string]string{fieldText: sampleText}, mask))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if _, err := png.Decode(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Fatalf("body is not a PNG: %v", err)
	}
	if got := rec.Header().Get(headerCache); got != "MISS" {
		t.Errorf("%s = %q, want MISS", headerCache, got)
	}

	id := rec.Header().Get(headerResultID)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("%s = %q: %v", headerResultID, id, err)
	}
	generated := rec.Body.Bytes()

	// Same request again is served from the artifact cache.
	rec = serve(s, multipartRequest(t, map[string]string{fieldText: sampleText}, mask))
	if got := rec.Header().Get(headerCache); got != "HIT" {
		t.Errorf("second %s = %q, want HIT", headerCache, got)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/results/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /results status = %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), generated) {
		t.Error("stored result differs from generated image")
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/runs/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /runs/{id} status = %d", rec.Code)
	}
	var run store.Run
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatal(err)
	}
	if run.Status != store.StatusOK || run.Source != "api" || run.Stats == nil {
		t.Errorf("run = %+v", run)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/runs?limit=10", nil))
	var list struct {
		Runs []store.Run `json:"runs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Runs) != 2 {
		t.Errorf("len(runs) = %d, want 2", len(list.Runs))
	}
}

func TestGenerateTextFile(t *testing.T) {
	s := newTestServer(nil)
	rec := serve(s, multipartRequest(t, nil,
		upload{fieldMask, "mask.png", maskPNG(t, 120, 80, image.Black)},
		upload{fieldTextFile, "words.txt", []byte(sampleText)},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestGenerateErrors(t *testing.T) {
	black := maskPNG(t, 60, 40, image.Black)
	white := maskPNG(t, 60, 40, image.White)

	tests := []struct {
		name   string
		fields map[string]string
		files  []upload
		status int
		code   errors.Code
	}{
		{
			name:   "missing mask",
			fields: map[string]string{fieldText: sampleText},
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidInput,
		},
		{
			name:   "missing text",
			files:  []upload{{fieldMask, "mask.png", black}},
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidInput,
		},
		{
			name:   "undecodable mask",
			fields: map[string]string{fieldText: sampleText},
			files:  []upload{{fieldMask, "mask.png", []byte("not an image")}},
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidMask,
		},
		{
			name:   "bad font",
			fields: map[string]string{fieldText: sampleText},
			files:  []upload{{fieldMask, "mask.png", black}, {fieldFont, "font.ttf", []byte("junk")}},
			status: http.StatusBadRequest,
			code:   errors.ErrCodeFontLoad,
		},
		{
			name:   "white mask",
			fields: map[string]string{fieldText: sampleText},
			files:  []upload{{fieldMask, "mask.png", white}},
			status: http.StatusUnprocessableEntity,
			code:   errors.ErrCodeEmptyCanvas,
		},
		{
			name:   "bad color",
			fields: map[string]string{fieldText: sampleText, fieldColor: "chartreuse-ish"},
			files:  []upload{{fieldMask, "mask.png", black}},
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidColor,
		},
		{
			name:   "vertical ratio out of range",
			fields: map[string]string{fieldText: sampleText, fieldVerticalRatio: "150"},
			files:  []upload{{fieldMask, "mask.png", black}},
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidInput,
		},
		{
			name:   "filename too long",
			fields: map[string]string{fieldText: sampleText},
			files:  []upload{{fieldMask, strings.Repeat("m", 300) + ".png", black}},
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(nil)
			rec := serve(s, multipartRequest(t, tt.fields, tt.files...))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			resp := decodeError(t, rec)
			if resp.Code != string(tt.code) {
				t.Errorf("code = %q, want %q", resp.Code, tt.code)
			}
			if resp.Error == "" {
				t.Error("empty error message")
			}
		})
	}
}

// mime/multipart strips directories from upload names, so a traversal
// attempt reaches the handler as a plain base name.
func TestGenerateUploadNameSanitized(t *testing.T) {
	s := newTestServer(nil)
	for _, name := range []string{"../mask.png", "../../etc/mask.png"} {
		t.Run(name, func(t *testing.T) {
			rec := serve(s, multipartRequest(t, map[string]string{fieldText: sampleText},
				upload{fieldMask, name, maskPNG(t, 60, 40, image.Black)}))
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
			}
		})
	}
}

func TestGenerateFailedRunRecorded(t *testing.T) {
	st := store.NewMemoryStore(0)
	s := newTestServer(st)
	rec := serve(s, multipartRequest(t, map[string]string{fieldText: sampleText},
		upload{fieldMask, "mask.png", maskPNG(t, 40, 40, image.White)}))

	resp := decodeError(t, rec)
	if resp.RunID == "" {
		t.Fatal("engine failure should report a run id")
	}
	run, err := st.GetRun(t.Context(), resp.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != store.StatusFailed || run.ErrorCode != string(errors.ErrCodeEmptyCanvas) {
		t.Errorf("run = %+v", run)
	}
}

func TestNumericFallback(t *testing.T) {
	s := newTestServer(nil)
	req := multipartRequest(t, map[string]string{
		fieldText:          sampleText,
		fieldMaxWords:      "lots",
		fieldVerticalRatio: "",
		fieldMinFontSize:   "12",
	}, upload{fieldMask, "mask.png", maskPNG(t, 60, 40, image.Black)})

	_, opts, err := s.parseGenerate(req)
	if err != nil {
		t.Fatalf("parseGenerate: %v", err)
	}
	if opts.MaxWords != 5 {
		t.Errorf("MaxWords = %d, want server default 5", opts.MaxWords)
	}
	if opts.MinFontSize != 12 {
		t.Errorf("MinFontSize = %d, want 12", opts.MinFontSize)
	}
	if got := *opts.PreferHorizontal; got != 0.6 {
		t.Errorf("PreferHorizontal = %v, want 0.6", got)
	}
}

func TestResultLookup(t *testing.T) {
	s := newTestServer(nil)
	tests := []struct {
		path   string
		status int
	}{
		{"/results/not-a-uuid", http.StatusBadRequest},
		{"/results/" + uuid.NewString(), http.StatusNotFound},
		{"/runs/" + uuid.NewString(), http.StatusNotFound},
		{"/runs?limit=0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serve(s, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestHealthAndIndex(t *testing.T) {
	s := newTestServer(nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var h healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&h); err != nil {
		t.Fatal(err)
	}
	if h.Status != "ok" {
		t.Errorf("status = %q", h.Status)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), `name="mask_file"`) {
		t.Error("index page is missing the upload form")
	}
}
