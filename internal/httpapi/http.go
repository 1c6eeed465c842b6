package httpapi

import (
	stderrors "errors"
	"encoding/json"
	"io"
	"net/http"

	apperrors "github.com/wyattkrebs/talespin-server/internal/errors"
)

const (
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// APIError represents an error with an HTTP status code and error code.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string { return e.Message }

func BadRequest(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: message}
}

func NotFound(message string) *APIError {
	return &APIError{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: message}
}

func InternalError(err error) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Code: ErrCodeInternalServer, Message: "internal server error"}
}

// ToAPIError maps an application error (internal/errors.Error) onto an
// HTTP status and error code.
func ToAPIError(err error) *APIError {
	var appErr *apperrors.Error
	if stderrors.As(err, &appErr) {
		switch appErr.Kind {
		case apperrors.ErrNotFound, apperrors.ErrInvalidRoomID:
			return NotFound(appErr.Message)
		case apperrors.ErrValidation, apperrors.ErrNameAlreadyTaken, apperrors.ErrBadPassword, apperrors.ErrJoinsDisabled:
			return &APIError{Status: http.StatusBadRequest, Code: ErrCodeValidation, Message: appErr.Message}
		default:
			return InternalError(err)
		}
	}
	return InternalError(err)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondOK(w http.ResponseWriter, data interface{}) { respondJSON(w, http.StatusOK, data) }

func respondCreated(w http.ResponseWriter, data interface{}) { respondJSON(w, http.StatusCreated, data) }

func respondError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*APIError); ok {
		respondJSON(w, apiErr.Status, apiErr)
		return
	}
	apiErr := ToAPIError(err)
	respondJSON(w, apiErr.Status, apiErr)
}

func decodeJSON(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if err == io.EOF {
			return BadRequest("request body is empty")
		}
		return BadRequest("invalid JSON: " + err.Error())
	}
	return nil
}
