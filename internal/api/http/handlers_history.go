package apihttp

import (
	"context"
	"log/slog"
	"net/http"
)

const defaultHistoryLimit = 50

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "lifecycle journal not configured")
		return
	}

	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	events, err := s.history.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Warn("list history failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list history")
		return
	}

	writeJSON(w, http.StatusOK, events)
}
