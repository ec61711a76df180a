package server

import (
	"context"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/maskcloud/pkg/buildinfo"
	"github.com/matzehuels/maskcloud/pkg/cache"
	"github.com/matzehuels/maskcloud/pkg/errors"
	"github.com/matzehuels/maskcloud/pkg/observability"
	"github.com/matzehuels/maskcloud/pkg/pipeline"
	"github.com/matzehuels/maskcloud/pkg/store"
)

// Form field names accepted by POST /generate.
const (
	fieldMask          = "mask_file"
	fieldText          = "text_input"
	fieldTextFile      = "text_file"
	fieldFont          = "font_file"
	fieldColor         = "color_code"
	fieldMaxWords      = "max_words"
	fieldMinFontSize   = "min_font_size"
	fieldMaxFontSize   = "max_font_size"
	fieldMinWordLength = "min_word_length"
	fieldVerticalRatio = "vertical_ratio"
	fieldSeed          = "seed"
)

// Form defaults.
const (
	defaultVerticalRatio = 40
	maxWordsLimit        = 5000
	fontSizeLimit        = 1024
)

// Response headers.
const (
	headerResultID = "X-Result-ID"
	headerCache    = "X-Cache"
)

//go:embed index.html
var indexHTML []byte

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Cache   string `json:"cache,omitempty"`
}

// cachePinger is implemented by cache backends that can report
// reachability, such as cache.RedisCache.
type cachePinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: buildinfo.Version}
	status := http.StatusOK
	if p, ok := s.runner.Cache.(cachePinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Cache = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Cache = "ok"
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxUploadMB)<<20)

	in, opts, err := s.parseGenerate(r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	run := store.NewRun("api", opts)
	res, err := s.runner.Execute(ctx, in, opts)
	run.Finish(res, err)
	if serr := s.store.SaveRun(ctx, run); serr != nil {
		s.logger.Warn("save run failed", "run", run.ID, "err", serr)
	}
	if err != nil {
		s.writeError(w, r, err, run.ID)
		return
	}

	if err := s.runner.SaveResult(ctx, run.ID, res.PNG); err != nil {
		s.logger.Warn("save result failed", "run", run.ID, "err", err)
	}

	s.logger.Info("generated cloud",
		"run", run.ID,
		"placed", res.Stats.Placed,
		"cached", res.CacheInfo.Hit)

	w.Header().Set(headerResultID, run.ID)
	w.Header().Set(headerCache, cacheStatus(res.CacheInfo.Hit))
	writePNG(w, res.PNG)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := errors.ValidateResultID(id); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	data, err := s.runner.LoadResult(r.Context(), id)
	if stderrors.Is(err, cache.ErrNotFound) {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeNotFound, err, "result %s not found or expired", id), "")
		return
	}
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	w.Header().Set(headerResultID, id)
	writePNG(w, data)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := errors.ValidateResultID(id); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := intField(r.URL.Query().Get("limit"), 20)
	if err := errors.ValidateRange("limit", limit, 1, 100); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	runs, err := s.store.RecentRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// parseGenerate reads the multipart form into pipeline input and options.
// Unparseable numbers fall back to their defaults; parsed numbers out of
// range are rejected.
func (s *Server) parseGenerate(r *http.Request) (pipeline.Input, pipeline.Options, error) {
	var in pipeline.Input
	opts := s.cfg.Defaults

	if err := r.ParseMultipartForm(int64(s.cfg.MaxUploadMB) << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return in, opts, errors.New(errors.ErrCodeInvalidInput, "upload exceeds %d MB", s.cfg.MaxUploadMB)
		}
		return in, opts, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse multipart form")
	}

	mask, err := readFile(r, fieldMask)
	if err != nil {
		return in, opts, err
	}
	if mask == nil {
		return in, opts, errors.New(errors.ErrCodeInvalidInput, "%s is required", fieldMask)
	}
	in.Mask = mask

	in.Text = strings.TrimSpace(r.FormValue(fieldText))
	if in.Text == "" {
		text, err := readFile(r, fieldTextFile)
		if err != nil {
			return in, opts, err
		}
		in.Text = string(text)
	}
	if strings.TrimSpace(in.Text) == "" {
		return in, opts, errors.New(errors.ErrCodeInvalidInput, "%s or %s is required", fieldText, fieldTextFile)
	}

	if in.Font, err = readFile(r, fieldFont); err != nil {
		return in, opts, err
	}

	if c := strings.TrimSpace(r.FormValue(fieldColor)); c != "" {
		opts.Color = c
	}

	opts.MaxWords = intField(r.FormValue(fieldMaxWords), orDefault(opts.MaxWords, pipeline.DefaultMaxWords))
	opts.MinFontSize = intField(r.FormValue(fieldMinFontSize), orDefault(opts.MinFontSize, pipeline.DefaultMinFontSize))
	opts.MaxFontSize = intField(r.FormValue(fieldMaxFontSize), opts.MaxFontSize)
	opts.MinWordLength = intField(r.FormValue(fieldMinWordLength), opts.MinWordLength)
	vertical := intField(r.FormValue(fieldVerticalRatio), defaultVerticalRatio)

	if v := r.FormValue(fieldSeed); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			opts.Seed = seed
		}
	}

	for _, check := range []error{
		errors.ValidateRange(fieldMaxWords, opts.MaxWords, 1, maxWordsLimit),
		errors.ValidateRange(fieldMinFontSize, opts.MinFontSize, 1, fontSizeLimit),
		errors.ValidateRange(fieldMaxFontSize, opts.MaxFontSize, 0, fontSizeLimit),
		errors.ValidateRange(fieldMinWordLength, opts.MinWordLength, 0, 100),
		errors.ValidateRange(fieldVerticalRatio, vertical, 0, 100),
	} {
		if check != nil {
			return in, opts, check
		}
	}
	opts.PreferHorizontal = pipeline.Float(1 - float64(vertical)/100)
	opts.Logger = nil
	return in, opts, nil
}

// readFile returns the bytes of an uploaded file, or nil if the field is
// absent or empty.
func readFile(r *http.Request, field string) ([]byte, error) {
	f, hdr, err := r.FormFile(field)
	if stderrors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", field)
	}
	defer f.Close()
	if err := validateUpload(hdr); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", field)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func validateUpload(hdr *multipart.FileHeader) error {
	if hdr.Filename == "" {
		return nil
	}
	return errors.ValidateUploadFilename(hdr.Filename)
}

// intField parses a form value, returning def when it is empty or not a
// number.
func intField(v string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	RunID string `json:"run_id,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, runID string) {
	code := errors.GetCode(err)
	status := errors.HTTPStatus(code)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	observability.HTTP().OnError(r.Context(), r.Method, r.URL.Path, err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "code", code, "err", err)
	}
	writeJSON(w, status, errorResponse{
		Error: errors.UserMessage(err),
		Code:  string(code),
		RunID: runID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
