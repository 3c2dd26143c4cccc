// Package server exposes the transcription pipeline over HTTP.
//
// Routes:
//
//   - POST /api/transcribe: multipart upload, JSON transcript response.
//   - /api/...: any other API path answers 404 with a JSON error.
//   - everything else: the static front-end, falling back to index.html so
//     client-side routes resolve.
//
// Error bodies are always {"error": "..."}. Validation failures answer 400,
// every other pipeline failure 500.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/MrWong99/audioscribe/internal/observe"
	"github.com/MrWong99/audioscribe/internal/pipeline"
	"github.com/MrWong99/audioscribe/pkg/types"
)

const (
	// DefaultMaxUploadBytes bounds the request body of an upload.
	DefaultMaxUploadBytes int64 = 1 << 30

	// multipartMemory is the part of a multipart form kept in memory; the
	// rest spills to temporary files.
	multipartMemory = 32 << 20
)

// Transcriber runs one transcription request. Implemented by
// *pipeline.Orchestrator.
type Transcriber interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

// Server serves the HTTP API and the static front-end.
type Server struct {
	transcriber    Transcriber
	staticDir      string
	maxUploadBytes int64
	corsOrigins    []string
}

// Option is a functional option for [New].
type Option func(*Server)

// WithStaticDir sets the directory of the built front-end. Without it every
// non-API path answers 404.
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithMaxUploadBytes caps the request body size of an upload. Defaults to
// [DefaultMaxUploadBytes].
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithCORSOrigins sets the origins allowed to call the API from a browser.
// "*" allows any origin. Defaults to "*".
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// New creates a Server running uploads through t.
func New(t Transcriber, opts ...Option) *Server {
	s := &Server{
		transcriber:    t,
		maxUploadBytes: DefaultMaxUploadBytes,
		corsOrigins:    []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the server's routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/transcribe", s.cors(http.HandlerFunc(s.handleTranscribe)))
	mux.Handle("/api/", s.cors(http.HandlerFunc(s.handleAPINotFound)))
	mux.HandleFunc("/", s.handleStatic)
}

// Handler returns a mux serving only the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// cors sets the CORS response headers for allowed origins and answers
// preflight requests directly.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := s.allowOrigin(origin); allowed != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+observe.RequestIDHeader)
			if allowed != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	if slices.Contains(s.corsOrigins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(s.corsOrigins, origin) {
		return origin
	}
	return ""
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	log := observe.Logger(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn("remove multipart temp files", "err", err)
		}
	}()

	req := pipeline.Request{
		APIKey:           r.FormValue("apiKey"),
		Language:         r.FormValue("language"),
		IdentifySpeakers: formBool(r, "enableSpeakerIdentification"),
		Summarize:        formBool(r, "enableSummarization"),
	}
	file, header, err := r.FormFile("audio")
	switch {
	case err == nil:
		defer file.Close()
		req.Audio = file
		req.Filename = header.Filename
	case !errors.Is(err, http.ErrMissingFile):
		writeError(w, http.StatusBadRequest, "invalid audio part: "+err.Error())
		return
	}

	// A client disconnect must not abort remote calls or scratch cleanup.
	resp, err := s.transcriber.Run(context.WithoutCancel(r.Context()), req)
	if err != nil {
		status, msg := errorResponse(err)
		if status == http.StatusBadRequest {
			log.Info("transcription rejected", "err", err)
		} else {
			log.Error("transcription failed", "kind", types.Kind(err), "err", err)
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAPINotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "API route not found")
}

// handleStatic serves files from the static directory. Paths that name no
// regular file get index.html.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if s.staticDir == "" {
		http.NotFound(w, r)
		return
	}

	name := filepath.Join(s.staticDir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	if fi, err := os.Stat(name); err != nil || fi.IsDir() {
		name = filepath.Join(s.staticDir, "index.html")
	}
	serveFile(w, r, name)
}

// serveFile writes the file at name. Unlike [http.ServeFile] it never
// redirects requests for index.html.
func serveFile(w http.ResponseWriter, r *http.Request, name string) {
	f, err := os.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}

// errorResponse maps a pipeline error to its status code and client message.
func errorResponse(err error) (int, string) {
	if errors.Is(err, types.ErrValidation) {
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), types.ErrValidation.Error()+": ")
	}
	return http.StatusInternalServerError, "transcription failed: " + err.Error()
}

// formBool reports whether the form field key holds a true value. Anything
// unparseable counts as false.
func formBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.FormValue(key))
	return err == nil && v
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}
