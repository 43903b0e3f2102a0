package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ronappleton/logistics-orchestrator/internal/workflow"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("content-type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body := readBody(r)
	if len(body) == 0 {
		http.Error(w, "request body required", http.StatusBadRequest)
		return
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := requestSchema.Validate(raw); err != nil {
		s.logger.Debug("request rejected by schema", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var in workflow.SubmitRequest
	if err := json.Unmarshal(body, &in); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	id, err := s.svc.Submit(r.Context(), in)
	if err != nil {
		s.writeWorkflowError(w, err)
		return
	}
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"request_id": id,
		"status":     workflow.StatusAnalyzing,
	})
}

func (s *Server) handleRequestByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/requests/")
	if path == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(path, "/")
	id := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch r.Method {
	case http.MethodGet:
		if action == "logs" && len(parts) == 2 {
			s.handleLogs(w, r, id)
			return
		}
		if action == "logs" && len(parts) == 3 && parts[2] == "stream" {
			s.handleLogStream(w, r, id)
			return
		}
		if action != "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		state, err := s.svc.Status(r.Context(), id)
		if err != nil {
			s.writeWorkflowError(w, err)
			return
		}
		writeJSON(w, state)
	case http.MethodPost:
		switch action {
		case "decision":
			s.handleDecision(w, r, id)
		case "reset":
			if err := s.svc.Reset(r.Context(), id); err != nil {
				s.writeWorkflowError(w, err)
				return
			}
			writeJSON(w, map[string]any{"ok": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Approved  *bool  `json:"approved"`
		Rationale string `json:"rationale"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if body.Approved == nil {
		writeError(w, http.StatusBadRequest, "approved is required")
		return
	}
	if err := s.svc.Decide(r.Context(), id, *body.Approved, body.Rationale); err != nil {
		s.writeWorkflowError(w, err)
		return
	}
	state, err := s.svc.Status(r.Context(), id)
	if err != nil {
		s.writeWorkflowError(w, err)
		return
	}
	writeJSON(w, state)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request, id string) {
	state, err := s.svc.Status(r.Context(), id)
	if err != nil {
		s.writeWorkflowError(w, err)
		return
	}
	writeJSON(w, map[string]any{"items": state.AgentLog})
}

// handleLogStream pushes visible log entries over SSE as they appear. The
// stream closes once the request reaches a terminal status.
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request, id string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if _, err := s.svc.Status(r.Context(), id); err != nil {
		s.writeWorkflowError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			state, err := s.svc.Status(r.Context(), id)
			if err != nil {
				return
			}
			for _, entry := range state.AgentLog {
				if entry.Sequence <= lastSeq {
					continue
				}
				payload, err := json.Marshal(entry)
				if err != nil {
					continue
				}
				_, _ = w.Write([]byte("data: " + string(payload) + "\n\n"))
				flusher.Flush()
				lastSeq = entry.Sequence
			}
			if state.Status.Terminal() {
				return
			}
		}
	}
}

func (s *Server) writeWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, workflow.ErrDuplicateRequest):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrUnknownRequest):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, workflow.ErrInvalidState), errors.Is(err, workflow.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("content-type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func readBody(r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	b, _ := io.ReadAll(r.Body)
	return b
}
