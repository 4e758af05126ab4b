package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"auctiondesk.app/internal/access"
	"auctiondesk.app/internal/tenant"
)

var errEmptyBody = errors.New("request body is empty")

type errorResponse struct {
	Error     string `json:"error"`
	Status    string `json:"status,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg, RequestID: requestIDFrom(r)})
}

// decodeJSON reads exactly one JSON value from the request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return errEmptyBody
		default:
			return errors.New("invalid JSON body")
		}
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// writeServiceError maps service errors to HTTP statuses. Unexpected errors are
// logged with the request id and answered with a generic message.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var denied *access.DeniedError
	switch {
	case errors.As(err, &denied):
		writeJSON(w, http.StatusForbidden, errorResponse{
			Error:     "Access denied. Waiting for admin approval.",
			Status:    string(denied.Status),
			RequestID: requestIDFrom(r),
		})
	case errors.Is(err, access.ErrInvalidInput), errors.Is(err, tenant.ErrInvalidInput), errors.Is(err, tenant.ErrUnknownKind):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "Invalid password")
	case errors.Is(err, access.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", `Bearer realm="auctiondesk"`)
		writeError(w, r, http.StatusUnauthorized, "invalid or expired session")
	case errors.Is(err, access.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "Unauthorized")
	case errors.Is(err, access.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "User not found")
	case errors.Is(err, access.ErrConflict):
		writeError(w, r, http.StatusConflict, "User already exists")
	default:
		a.logger.Error("Request failed",
			zap.String("request_id", requestIDFrom(r)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
