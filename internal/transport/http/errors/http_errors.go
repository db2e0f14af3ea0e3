package errors

import (
	"encoding/json"
	"net/http"

	"github.com/ivankudzin/trustsafety/internal/domain/faults"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Detail string `json:"detail"`
}

func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteDetail(w http.ResponseWriter, status int, detail string) {
	Write(w, status, APIError{Detail: detail})
}

// WriteFault maps the fault kind of err to its status code. Internal errors
// are reported with a fixed message.
func WriteFault(w http.ResponseWriter, err error) {
	WriteDetail(w, StatusFor(faults.KindOf(err)), faults.Message(err))
}

func StatusFor(kind faults.Kind) int {
	switch kind {
	case faults.KindNotFound:
		return http.StatusNotFound
	case faults.KindForbidden:
		return http.StatusForbidden
	case faults.KindConflict:
		return http.StatusConflict
	case faults.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
