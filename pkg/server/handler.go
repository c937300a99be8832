package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

type statusResponse struct {
	Status string `json:"status"`
}

type uploadResponse struct {
	FilePath string `json:"file_path"`
}

type summarizeRequest struct {
	FilePath string `json:"file_path"`
}

type summarizeURLRequest struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Message   string          `json:"message"`
	SessionID model.SessionID `json:"session_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(ctx, w, goerr.Wrap(model.ErrInvalidRequest, "multipart field 'file' is required",
			goerr.V("error", err.Error())))
		return
	}
	defer file.Close()

	path, err := s.uc.Upload(ctx, header.Filename, file)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, uploadResponse{FilePath: path})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req summarizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := s.uc.Summarize(ctx, req.FilePath)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, result)
}

func (s *Server) handleSummarizeURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req summarizeURLRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := s.uc.SummarizeURL(ctx, req.URL)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, result)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := s.uc.Chat(ctx, req.SessionID, req.Message)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, result)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := model.SessionID(chi.URLParam(r, "id"))
	if err := s.uc.DeleteSession(ctx, id); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, statusResponse{Status: "ok"})
}
