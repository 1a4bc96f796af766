// Package collector is the receiving side of the node's telemetry: an HTTP
// endpoint that keeps the latest reading and a bounded history, optionally
// persisted to SQLite and forwarded to MQTT.
package collector

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const maxBody = 4 << 10

type Server struct {
	store Store
	pub   Publisher
	log   *slog.Logger
	now   func() time.Time
}

// NewServer creates the HTTP front end. pub may be nil.
func NewServer(store Store, pub Publisher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, pub: pub, log: logger, now: time.Now}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /data", s.handlePost)
	mux.HandleFunc("GET /data", s.handleLatest)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

type postBody struct {
	Temp *float64 `json:"temp"`
	Hum  *float64 `json:"hum"`
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	var body postBody
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	remote, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remote = r.RemoteAddr
	}
	smp := Sample{Temp: body.Temp, Hum: body.Hum, At: s.now(), Remote: remote}
	if err := s.store.Add(r.Context(), smp); err != nil {
		s.log.Error("store reading failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store reading")
		return
	}
	s.log.Info("data received", "remote", remote, "temp", deref(body.Temp), "hum", deref(body.Hum))

	if s.pub != nil {
		if err := s.pub.Publish(smp); err != nil {
			s.log.Warn("forward failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	smp, ok, err := s.store.Latest(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, postBody{Temp: smp.Temp, Hum: smp.Hum})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := s.store.History(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]Entry, 0, len(hist))
	for _, smp := range hist {
		out = append(out, smp.Entry())
	}
	writeJSON(w, http.StatusOK, out)
}

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}
