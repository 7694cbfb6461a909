package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/isdmx/codeide/execution"
	"github.com/isdmx/codeide/storage"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	} else {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
	}
	return false
}

// --- Health & languages ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Profiles())
}

// --- Execution ---

type faultResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req execution.Request
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.exec.Execute(r.Context(), req)
	if err != nil {
		var verr *execution.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Message)
			return
		}

		s.logger.Error("execution error", zap.String("language", req.Language), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, faultResponse{
			Success: false,
			Error:   "Internal server error",
			Message: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// --- Files ---

type fileRequest struct {
	Name     *string `json:"name"`
	Content  *string `json:"content"`
	Language *string `json:"language"`
}

const msgFileNotFound = "File not found"

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgFileNotFound)
		return
	}
	s.logger.Error("file store error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) checkLanguage(w http.ResponseWriter, lang string) bool {
	if s.registry.Supports(lang) {
		return true
	}
	writeError(w, http.StatusBadRequest, "Invalid language. Supported: "+strings.Join(s.registry.IDs(), ", "))
	return false
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.List(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Name == nil || *req.Name == "" || req.Language == nil || *req.Language == "" {
		writeError(w, http.StatusBadRequest, "Name and language are required")
		return
	}
	if !s.checkLanguage(w, *req.Language) {
		return
	}

	f := &storage.File{Name: *req.Name, Language: *req.Language}
	if req.Content != nil {
		f.Content = *req.Content
	}

	if err := s.store.Create(r.Context(), f); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	f, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}

	// Absent fields keep their stored value.
	if req.Name != nil {
		if *req.Name == "" {
			writeError(w, http.StatusBadRequest, "Name and language are required")
			return
		}
		f.Name = *req.Name
	}
	if req.Language != nil {
		if !s.checkLanguage(w, *req.Language) {
			return
		}
		f.Language = *req.Language
	}
	if req.Content != nil {
		f.Content = *req.Content
	}

	if err := s.store.Update(r.Context(), f); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted successfully"})
}
