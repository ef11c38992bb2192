package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	pkgerrors "govbook/pkg/domain-errors"
)

// statusFor maps domain error codes onto HTTP statuses. Capacity rejections
// and state conflicts both surface as 409 so clients retry with fresh data.
func statusFor(code pkgerrors.Code) int {
	switch code {
	case pkgerrors.CodeBadRequest:
		return http.StatusBadRequest
	case pkgerrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case pkgerrors.CodePermissionDenied:
		return http.StatusForbidden
	case pkgerrors.CodeNotFound:
		return http.StatusNotFound
	case pkgerrors.CodeConflict, pkgerrors.CodeInvalidState:
		return http.StatusConflict
	case pkgerrors.CodeInvalidTransition:
		return http.StatusUnprocessableEntity
	case pkgerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError renders a coded domain error as JSON. Uncoded errors become an
// opaque 500 so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	var de *pkgerrors.Error
	if !errors.As(err, &de) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: string(pkgerrors.CodeInternal)})
		return
	}
	writeJSON(w, statusFor(de.Code), errorResponse{Error: string(de.Code), Message: de.Message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decode parses a JSON body into dst, rejecting unknown fields so typos in
// client payloads fail loudly instead of silently defaulting.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body")
	}
	return nil
}

// idParam extracts a positive int64 route parameter.
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.Newf(pkgerrors.CodeBadRequest, "invalid %s", name)
	}
	return id, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, pkgerrors.Newf(pkgerrors.CodeBadRequest, "invalid %s", name)
	}
	return n, nil
}
