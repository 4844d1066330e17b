package respond

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/Oniqq60/task_system_control/internal/apperr"
)

const maxBodySize = 1 << 20 // 1MB

var (
	errEmptyBody   = errors.New("request body is empty")
	errUnknownBody = errors.New("request body contains unexpected data")
)

// DecodeJSON читает тело запроса в dst. Ошибки уже обёрнуты как Invalid.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return apperr.Invalid(errEmptyBody.Error())
	}
	defer r.Body.Close()

	limited := io.LimitReader(r.Body, maxBodySize)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid(errEmptyBody.Error())
		}
		return apperr.Wrap(apperr.ErrInvalid, "invalid json", err)
	}

	if decoder.More() {
		return apperr.Invalid(errUnknownBody.Error())
	}

	return nil
}

func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json error: %v", err)
	}
}

func ErrorMessage(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	JSON(w, status, map[string]string{"error": message})
}

// Error maps an error kind to its HTTP status. Errors without a kind become 500
// and their text is only logged.
func Error(w http.ResponseWriter, err error) {
	status := Status(err)
	message := apperr.Message(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		message = "internal server error"
	}
	ErrorMessage(w, status, message)
}

func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
