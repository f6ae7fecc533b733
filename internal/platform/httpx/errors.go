package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

// RespondError maps the shared domain sentinels to RFC7807 problem responses
// and logs anything unexpected before answering 500. op labels the failing
// operation in the log line. Handlers with route-specific detail text write
// their own Problem calls instead.
func RespondError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "resource does not exist")
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Conflict", "resource already exists")
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
	default:
		if logger != nil {
			logger.Error(op, slog.Any("error", err))
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
