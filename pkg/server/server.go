// Package server exposes the computed charts as a read-only JSON API.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/andreiv/feedbase/internal/store"
	"github.com/andreiv/feedbase/pkg/chart"
)

// Server provides the HTTP API.
type Server struct {
	store store.Store
	port  int
}

// New creates a new HTTP server.
func New(s store.Store, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{store: s, port: port}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/charts", s.handleCharts)
	mux.HandleFunc("/api/v1/charts/", s.handleChart)
	mux.HandleFunc("/api/v1/stats", s.handleStats)

	addr := fmt.Sprintf(":%d", s.port)
	fmt.Printf("feedbase server listening on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	charts, err := s.store.ListCharts(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	type chartInfo struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	infos := make([]chartInfo, 0, len(charts))
	for _, c := range charts {
		infos = append(infos, chartInfo{ID: c.ID, Title: c.Title})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  infos,
		"count": len(infos),
	})
}

type chartMetadata struct {
	ComputedStartDate *time.Time `json:"computed_start_date"`
	ComputedEndDate   *time.Time `json:"computed_end_date"`
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/charts/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "chart not found"})
		return
	}

	c, meta, err := s.store.GetChart(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "chart not found"})
		return
	}

	values := chart.Values{}
	if err := json.Unmarshal([]byte(c.SeriesJSON), &values); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "corrupt chart values"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"title":  c.Title,
		"values": values,
		"metadata": chartMetadata{
			ComputedStartDate: meta.ComputedStartDate,
			ComputedEndDate:   meta.ComputedEndDate,
		},
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
