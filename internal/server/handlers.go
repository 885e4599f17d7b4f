package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/devserve-run/devserve/internal/orchestrator"
)

// serveRequest is the body of POST /serve and POST /static.
type serveRequest struct {
	Directory string `json:"directory"`
	Command   string `json:"command,omitempty"`
}

// serveDirectory handles POST /serve.
func (s *Server) serveDirectory(w http.ResponseWriter, r *http.Request) {
	var req serveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Directory == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "directory is required")
		return
	}

	result, err := s.orch.Serve(r.Context(), req.Directory, req.Command)
	if err != nil {
		var unsupported *orchestrator.UnsupportedEntryError
		var install *orchestrator.InstallError
		switch {
		case errors.As(err, &unsupported):
			writeError(w, http.StatusUnprocessableEntity, ErrCodeUnsupportedEntry, err.Error())
		case errors.As(err, &install):
			writeError(w, http.StatusFailedDependency, ErrCodeInstallFailed, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		}
		return
	}

	s.setCurrent(result)
	writeJSON(w, http.StatusOK, result)
}

// stopServe handles POST /serve/stop.
func (s *Server) stopServe(w http.ResponseWriter, r *http.Request) {
	if current := s.takeCurrent(); current != nil && current.Stop != nil {
		current.Stop()
	}
	s.orch.StopActiveProcess()
	writeSuccess(w)
}

// serveStatic handles POST /static: direct static serving, no strategy
// selection.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	var req serveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Directory == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "directory is required")
		return
	}

	result, err := s.orch.ServeDirectoryDirectly(req.Directory)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}

	s.setCurrent(result)
	writeJSON(w, http.StatusOK, result)
}

// stopStatic handles POST /static/stop.
func (s *Server) stopStatic(w http.ResponseWriter, r *http.Request) {
	s.orch.StopActiveStaticServer()
	writeSuccess(w)
}

// getStatus handles GET /status.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	current := s.currentResult()
	status := map[string]any{"active": current != nil}
	if current != nil {
		status["localUrl"] = current.LocalURL
		status["externalUrl"] = current.ExternalURL
		status["strategy"] = current.Strategy
	}
	writeJSON(w, http.StatusOK, status)
}

// health handles GET /health.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
