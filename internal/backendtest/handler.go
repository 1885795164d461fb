package backendtest

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/howard-nolan/workersai/internal/stream"
)

// handleRun serves POST .../ai/run/{model} and the gateway equivalent.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var inputs map[string]any
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"errors":  []map[string]any{{"code": 5006, "message": "invalid request body: " + err.Error()}},
		})
		return
	}

	reply, ok := s.next(Request{
		Account: chi.URLParam(r, "account"),
		Gateway: chi.URLParam(r, "gateway"),
		Model:   chi.URLParam(r, "*"),
		Query:   r.URL.Query(),
		Header:  r.Header.Clone(),
		Inputs:  inputs,
	})
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"errors":  []map[string]any{{"code": 7000, "message": "No route for that URI"}},
		})
		return
	}

	switch {
	case reply.Error != nil:
		status := reply.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, reply.Error)

	case reply.Events != nil && !reply.NoDone:
		if err := stream.Write(w, reply.Events); err != nil {
			log.Printf("backendtest: %v", err)
		}

	case reply.Events != nil:
		// Truncated stream: the events without the terminal sentinel.
		sw, err := stream.NewWriter(w)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for _, ev := range reply.Events {
			if err := sw.WriteData(ev); err != nil {
				log.Printf("backendtest: %v", err)
				return
			}
		}

	case reply.Body != nil:
		if reply.ContentType != "" {
			w.Header().Set("Content-Type", reply.ContentType)
		}
		w.WriteHeader(statusOr(reply.Status, http.StatusOK))
		w.Write(reply.Body)

	default:
		writeJSON(w, statusOr(reply.Status, http.StatusOK), map[string]any{
			"result":  reply.Result,
			"success": true,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusOr(status, fallback int) int {
	if status == 0 {
		return fallback
	}
	return status
}
