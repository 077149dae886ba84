package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/OrFisher/real-time-speech-processor/internal/keywords"
	"github.com/OrFisher/real-time-speech-processor/internal/store"
)

// Pointer fields distinguish "omitted" from explicit zero values, so an
// update can clear the talking point or deactivate a keyword.
type keywordRequest struct {
	Word         string  `json:"word"`
	TalkingPoint *string `json:"talking_point"`
	Active       *bool   `json:"is_active"`
}

func (s *Server) handleCreateKeyword(w http.ResponseWriter, r *http.Request) {
	var req keywordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.Word = strings.TrimSpace(req.Word)
	if req.Word == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "word is required")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	talkingPoint := ""
	if req.TalkingPoint != nil {
		talkingPoint = *req.TalkingPoint
	}

	kw, err := s.store.CreateKeyword(r.Context(), keywords.Keyword{
		Word:         req.Word,
		TalkingPoint: talkingPoint,
		Active:       active,
	})
	if err != nil {
		if errors.Is(err, store.ErrWordExists) {
			respondError(w, http.StatusConflict, "word_exists", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, kw)
}

func (s *Server) handleListKeywords(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListKeywords(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"keywords": list})
}

func (s *Server) handleGetKeyword(w http.ResponseWriter, r *http.Request) {
	kw, err := s.store.GetKeyword(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "keyword_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, kw)
}

func (s *Server) handleUpdateKeyword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, err := s.store.GetKeyword(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "keyword_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	var req keywordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if word := strings.TrimSpace(req.Word); word != "" {
		current.Word = word
	}
	if req.TalkingPoint != nil {
		current.TalkingPoint = *req.TalkingPoint
	}
	if req.Active != nil {
		current.Active = *req.Active
	}

	updated, err := s.store.UpdateKeyword(r.Context(), current)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			respondError(w, http.StatusNotFound, "keyword_not_found", err.Error())
		case errors.Is(err, store.ErrWordExists):
			respondError(w, http.StatusConflict, "word_exists", err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteKeyword(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteKeyword(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "keyword_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
