// Package api exposes the spotter engine over HTTP: a JSON command
// surface for settings and mark edits, and a server-sent-events stream
// relaying published state bundles to browser clients. The engine does
// not know this package exists; it only sees Publisher subscribers and
// command method calls.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/spotterhq/spotter/internal/httputil"
	"github.com/spotterhq/spotter/internal/spotter"
)

// Server bridges HTTP clients to one engine instance.
type Server struct {
	engine *spotter.Engine
}

// NewServer wraps an engine.
func NewServer(engine *spotter.Engine) *Server {
	return &Server{engine: engine}
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/settings", s.showSettings)
	mux.HandleFunc("/setting", s.applySetting)
	mux.HandleFunc("/mark", s.editMark)
	mux.HandleFunc("/targets", s.listTargets)
	mux.HandleFunc("/events", s.streamEvents)
	return mux
}

// loggingResponseWriter records the status code for request logging.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf("[%s] %s %s %vms",
			strconv.Itoa(lrw.statusCode), r.Method, r.RequestURI,
			float64(time.Since(start).Nanoseconds())/1e6)
	})
}

func (s *Server) showSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.engine.Settings())
}

func (s *Server) listTargets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, spotter.Targets())
}

// settingRequest is the {param, value} payload of POST /setting.
type settingRequest struct {
	Param string `json:"param"`
	Value any    `json:"value"`
}

func (s *Server) applySetting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req settingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("bad request: %v", err))
		return
	}
	if err := s.engine.ApplySetting(req.Param, req.Value); err != nil {
		if errors.Is(err, spotter.ErrInvalidSetting) {
			httputil.UnprocessableEntity(w, err.Error())
			return
		}
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

// markRequest is the {action, index, pos} payload of POST /mark.
type markRequest struct {
	Action string `json:"action"`
	Index  int    `json:"index"`
	Pos    *struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"pos,omitempty"`
}

func (s *Server) editMark(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req markRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("bad request: %v", err))
		return
	}
	edit := spotter.MarkEdit{
		Action: spotter.MarkEditAction(req.Action),
		Index:  req.Index,
	}
	if req.Pos != nil {
		edit.PixelX = req.Pos.X
		edit.PixelY = req.Pos.Y
	}
	if err := s.engine.EditMark(edit); err != nil {
		if errors.Is(err, spotter.ErrIndexOutOfRange) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

// streamEvents relays published state bundles as server-sent events
// until the client disconnects.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates, cancel := s.engine.Publisher().Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(u)
			if err != nil {
				log.Printf("[API] marshal update: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
