package apihttp

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"torrentsession/internal/domain"
	"torrentsession/internal/usecase"
)

type transferList struct {
	Items []domain.TransferInfo `json:"items"`
	Count int                   `json:"count"`
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleAddTransfer(w, r)
	case http.MethodGet:
		s.handleListTransfers(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	if s.listTransfers == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "list transfers use case not configured")
		return
	}
	items := s.listTransfers.Execute(r.Context())
	writeJSON(w, http.StatusOK, transferList{Items: items, Count: len(items)})
}

func (s *Server) handleAddTransfer(w http.ResponseWriter, r *http.Request) {
	if s.addTransfer == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "add transfer use case not configured")
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	switch mediaType {
	case "application/json":
		s.handleAddTransferJSON(w, r)
	case "multipart/form-data":
		s.handleAddTransferMultipart(w, r)
	default:
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "unsupported content type")
	}
}

type addTransferJSON struct {
	Magnet string `json:"magnet"`
	Name   string `json:"name,omitempty"`
}

func (s *Server) handleAddTransferJSON(w http.ResponseWriter, r *http.Request) {
	var body addTransferJSON
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}

	s.executeAdd(w, r, usecase.AddTransferInput{
		Name:   strings.TrimSpace(body.Name),
		Source: domain.TransferSource{Magnet: strings.TrimSpace(body.Magnet)},
	})
}

func (s *Server) handleAddTransferMultipart(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 5 << 20 // metainfo files are small
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("torrent")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing torrent file")
		return
	}
	defer file.Close()

	path, err := saveUploadedFile(file, header.Filename, s.uploadDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to store torrent file")
		return
	}
	defer os.Remove(path)

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		// The staged file carries a random suffix; keep the uploaded name as
		// the last-resort display name.
		base := filepath.Base(header.Filename)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	s.executeAdd(w, r, usecase.AddTransferInput{
		Name:   name,
		Source: domain.TransferSource{Torrent: path},
	})
}

func (s *Server) executeAdd(w http.ResponseWriter, r *http.Request, input usecase.AddTransferInput) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	info, err := s.addTransfer.Execute(ctx, input)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// handleTransferByID serves /transfers/{id} and /transfers/{id}/{action}.
func (s *Server) handleTransferByID(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/transfers/"), "/")
	parts := strings.Split(tail, "/")
	if len(parts) > 2 {
		http.NotFound(w, r)
		return
	}

	if isZeroID(parts[0]) {
		// Ids start at 1, so 0 is a well-formed id that never exists.
		writeUseCaseError(w, domain.ErrNotFound)
		return
	}
	id, err := domain.ParseTransferID(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	if len(parts) == 2 {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "pause":
			s.handlePauseTransfer(ctx, w, id)
		case "resume":
			s.handleResumeTransfer(ctx, w, id)
		default:
			http.NotFound(w, r)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetTransfer(ctx, w, id)
	case http.MethodDelete:
		s.handleRemoveTransfer(ctx, w, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGetTransfer(ctx context.Context, w http.ResponseWriter, id domain.TransferID) {
	if s.getTransfer == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "get transfer use case not configured")
		return
	}
	info, err := s.getTransfer.Execute(ctx, id)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handlePauseTransfer(ctx context.Context, w http.ResponseWriter, id domain.TransferID) {
	if s.pauseTransfer == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "pause transfer use case not configured")
		return
	}
	info, err := s.pauseTransfer.Execute(ctx, id)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleResumeTransfer(ctx context.Context, w http.ResponseWriter, id domain.TransferID) {
	if s.resumeTransfer == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resume transfer use case not configured")
		return
	}
	info, err := s.resumeTransfer.Execute(ctx, id)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleRemoveTransfer(ctx context.Context, w http.ResponseWriter, id domain.TransferID) {
	if s.removeTransfer == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "remove transfer use case not configured")
		return
	}
	if err := s.removeTransfer.Execute(ctx, id); err != nil {
		writeUseCaseError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isZeroID(raw string) bool {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	return err == nil && n == 0
}
