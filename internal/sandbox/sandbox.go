// Package sandbox serves the File API over HTTP from an in-memory store so the
// SDK and the CLI can be exercised without a real site.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/sitekit/files_sdk_go/internal/httpx"
	"github.com/sitekit/files_sdk_go/pkg/files"
	filesmock "github.com/sitekit/files_sdk_go/pkg/files/mock"
	"github.com/sitekit/files_sdk_go/pkg/files/transport"
)

const maxUploadMemory = 32 << 20

// FailConfig injects failures into a share of the requests.
type FailConfig struct {
	Rate float64
	Code int
}

// ParseFailConfig parses "rate=<float>,code=<httpStatus>". An empty string
// disables injection.
func ParseFailConfig(raw string) (FailConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return FailConfig{}, nil
	}
	cfg := FailConfig{Code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return FailConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "rate":
			rate, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return FailConfig{}, fmt.Errorf("invalid fail rate %q: %w", val, err)
			}
			if rate < 0 || rate > 1 {
				return FailConfig{}, fmt.Errorf("fail rate %v out of range [0,1]", rate)
			}
			cfg.Rate = rate
		case "code":
			code, err := strconv.Atoi(val)
			if err != nil {
				return FailConfig{}, fmt.Errorf("invalid fail code %q: %w", val, err)
			}
			if code < 100 || code > 599 {
				return FailConfig{}, fmt.Errorf("fail code %d is not an HTTP status", code)
			}
			cfg.Code = code
		default:
			return FailConfig{}, fmt.Errorf("unknown fail key %q", key)
		}
	}
	return cfg, nil
}

// Config tunes the sandbox server.
type Config struct {
	// Prefix is the path the API is mounted under, e.g. "/api".
	Prefix  string
	Latency time.Duration
	Fail    FailConfig
	// Token, when set, must accompany multipart uploads.
	Token  string
	Logger zerolog.Logger
}

// Server exposes a mock store through the File API routes.
type Server struct {
	store  *filesmock.Mock
	cfg    Config
	random func() float64
}

// New constructs a server backed by store.
func New(store *filesmock.Mock, cfg Config) *Server {
	cfg.Prefix = "/" + strings.Trim(cfg.Prefix, "/")
	if cfg.Prefix == "/" {
		cfg.Prefix = ""
	}
	return &Server{store: store, cfg: cfg, random: rand.Float64}
}

// Handler returns the router serving the API.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter().UseEncodedPath()
	router.Use(s.logRequests, s.injectFaults)

	base := s.cfg.Prefix + "/File"
	router.HandleFunc(base, s.handleList).Methods(http.MethodGet)
	router.HandleFunc(base, s.handleAdd).Methods(http.MethodPost)
	router.HandleFunc(base+"/upload", s.handleUploadFromURL).Methods(http.MethodGet)
	router.HandleFunc(base+"/upload", s.handleUploadMultipart).Methods(http.MethodPost)
	router.HandleFunc(base+"/download/{id:[0-9]+}", s.handleDownload).Methods(http.MethodGet)
	router.HandleFunc(base+"/{siteId:[0-9]+}/{path}", s.handleListByPath).Methods(http.MethodGet)
	router.HandleFunc(base+"/{id:[0-9]+}", s.handleGet).Methods(http.MethodGet)
	router.HandleFunc(base+"/{id:[0-9]+}", s.handleUpdate).Methods(http.MethodPut)
	router.HandleFunc(base+"/{id:[0-9]+}", s.handleDelete).Methods(http.MethodDelete)
	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.cfg.Logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.EscapedPath()).
			Str("request_id", r.Header.Get(httpx.RequestIDHeader)).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Latency > 0 {
			t := time.NewTimer(s.cfg.Latency)
			select {
			case <-t.C:
			case <-r.Context().Done():
				t.Stop()
				return
			}
		}
		if s.cfg.Fail.Rate > 0 && s.random() < s.cfg.Fail.Rate {
			code := s.cfg.Fail.Code
			if code == 0 {
				code = http.StatusInternalServerError
			}
			http.Error(w, "failure injected", code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("folder")
	if strings.TrimSpace(folder) == "" {
		http.Error(w, "folder is required", http.StatusBadRequest)
		return
	}
	list, err := s.store.ListFiles(r.Context(), folder)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListByPath(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	siteID, err := strconv.Atoi(vars["siteId"])
	if err != nil {
		http.Error(w, "invalid site id", http.StatusBadRequest)
		return
	}
	folderPath, err := url.QueryUnescape(vars["path"])
	if err != nil {
		http.Error(w, "invalid folder path", http.StatusBadRequest)
		return
	}
	list, err := s.store.ListFilesByPath(r.Context(), siteID, folderPath)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// A missing folder answers null, like the upstream API.
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := fileID(w, r)
	if !ok {
		return
	}
	rec, err := s.store.GetFile(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var in files.File
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	rec, err := s.store.AddFile(r.Context(), &in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := fileID(w, r)
	if !ok {
		return
	}
	var in files.File
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if in.FileID != id {
		http.Error(w, "file id does not match the route", http.StatusBadRequest)
		return
	}
	rec, err := s.store.UpdateFile(r.Context(), &in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := fileID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteFile(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUploadFromURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	source := q.Get("url")
	if source == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}
	folderID, err := strconv.Atoi(q.Get("folderid"))
	if err != nil {
		http.Error(w, "invalid folderid", http.StatusBadRequest)
		return
	}
	rec, err := s.store.UploadFromURL(r.Context(), source, folderID, q.Get("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUploadMultipart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.cfg.Token != "" {
		token := r.Header.Get(transport.TokenHeader)
		if token == "" {
			token = r.FormValue(transport.TokenField)
		}
		if token != s.cfg.Token {
			http.Error(w, "invalid request verification token", http.StatusBadRequest)
			return
		}
	}
	folder := r.FormValue(transport.FolderField)
	if strings.TrimSpace(folder) == "" {
		http.Error(w, "folder is required", http.StatusBadRequest)
		return
	}
	headers := r.MultipartForm.File[transport.FileField]
	if len(headers) == 0 {
		http.Error(w, "no files in request", http.StatusBadRequest)
		return
	}

	stored := make([]*files.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec, err := s.store.UploadContent(r.Context(), folder, fh.Filename, data)
		if err != nil {
			s.writeError(w, err)
			return
		}
		stored = append(stored, rec)
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := fileID(w, r)
	if !ok {
		return
	}
	data, err := s.store.Download(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, files.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		s.cfg.Logger.Error().Err(err).Msg("request failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func fileID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid file id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
