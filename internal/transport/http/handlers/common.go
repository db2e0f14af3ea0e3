package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authsvc "github.com/ivankudzin/trustsafety/internal/services/auth"
	httperrors "github.com/ivankudzin/trustsafety/internal/transport/http/errors"
)

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (authsvc.Identity, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		httperrors.WriteDetail(w, http.StatusUnauthorized, "authentication required")
		return authsvc.Identity{}, false
	}
	return identity, true
}

func caseNumberParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "case_number"))
	caseNumber, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || caseNumber <= 0 {
		httperrors.WriteDetail(w, http.StatusBadRequest, "case_number must be a positive integer")
		return 0, false
	}
	return caseNumber, true
}

func parseBoolQuery(raw string) (bool, error) {
	if strings.TrimSpace(raw) == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func parseDayDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	day = day.UTC()
	return &day, nil
}

func parseUUIDQuery(raw string) (*uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func joinCases(cases []int64) string {
	parts := make([]string, 0, len(cases))
	for _, c := range cases {
		parts = append(parts, "#"+strconv.FormatInt(c, 10))
	}
	return strings.Join(parts, ", ")
}

func emptyIfNil(cases []int64) []int64 {
	if cases == nil {
		return []int64{}
	}
	return cases
}
