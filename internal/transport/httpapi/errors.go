package httpapi

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}

// writeServiceError переводит доменную ошибку в HTTP-ответ.
// Детали ошибок хранилища в ответ не попадают, только в лог.
func writeServiceError(w http.ResponseWriter, logger *log.Entry, err error) {
	switch {
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case domain.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case domain.IsVersionConflict(err):
		writeError(w, http.StatusConflict, "version_conflict", "order was changed by someone else, reload and try again")
	default:
		logger.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "an error occurred while processing the request")
	}
}
