package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/services/appeals"
	"github.com/ivankudzin/trustsafety/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/trustsafety/internal/transport/http/errors"
)

type AppealsHandler struct {
	service *appeals.Service
}

func NewAppealsHandler(service *appeals.Service) *AppealsHandler {
	return &AppealsHandler{service: service}
}

func (h *AppealsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	status, ok := appealStatusQuery(w, r)
	if !ok {
		return
	}

	items, err := h.service.Dashboard(r.Context(), identity, status)
	if err != nil {
		httperrors.WriteFault(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.NewAppealList(items))
}

func (h *AppealsHandler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	status, ok := appealStatusQuery(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	employeeID, err := parseUUIDQuery(query.Get("emp_id"))
	if err != nil {
		httperrors.WriteDetail(w, http.StatusBadRequest, "emp_id must be a uuid")
		return
	}
	createdAt, err := parseDayDate(query.Get("created_at"))
	if err != nil {
		httperrors.WriteDetail(w, http.StatusBadRequest, "created_at must be YYYY-MM-DD")
		return
	}

	items, err := h.service.AdminDashboard(r.Context(), identity, appeals.AdminQuery{
		Type:       query.Get("type"),
		Status:     status,
		EmployeeID: employeeID,
		CreatedAt:  createdAt,
	})
	if err != nil {
		httperrors.WriteFault(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.NewAppealList(items))
}

func (h *AppealsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}
	caseNumber, ok := caseNumberParam(w, r)
	if !ok {
		return
	}

	detail, err := h.service.Detail(r.Context(), caseNumber)
	if err != nil {
		httperrors.WriteFault(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.AppealDetailResponse{
		Appeal:   dto.NewAppealResponse(detail.Appeal),
		Report:   dto.NewReportResponse(detail.Report),
		Timeline: dto.NewTimeline(detail.Events),
	})
}

func (h *AppealsHandler) Related(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	caseNumber, ok := caseNumberParam(w, r)
	if !ok {
		return
	}
	adminView, err := parseBoolQuery(r.URL.Query().Get("admin"))
	if err != nil {
		httperrors.WriteDetail(w, http.StatusBadRequest, "admin must be a boolean")
		return
	}

	items, err := h.service.Related(r.Context(), identity, caseNumber, adminView)
	if err != nil {
		httperrors.WriteFault(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.NewAppealList(items))
}

func (h *AppealsHandler) Review(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req dto.CaseListRequest
	if err := decodeJSON(r, &req); err != nil {
		httperrors.WriteDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.service.MarkReview(r.Context(), identity, req.CaseNumberList)
	if err != nil {
		httperrors.WriteFault(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.ReviewResponse{
		Message:            fmt.Sprintf("%d appeal(s) moved to review", len(res.Valid)),
		Valid:              emptyIfNil(res.Valid),
		Invalid:            emptyIfNil(res.Invalid),
		AlreadyUnderReview: emptyIfNil(res.AlreadyUnderReview),
	})
}

func (h *AppealsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req dto.AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		httperrors.WriteDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.service.Assign(r.Context(), identity, req.CaseNumberList, req.EmployeeID)
	if err != nil {
		httperrors.WriteFault(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.AssignResponse{
		Message:  fmt.Sprintf("%d appeal(s) assigned", len(res.Assigned)),
		Assigned: emptyIfNil(res.Assigned),
		Invalid:  emptyIfNil(res.Invalid),
	})
}

func (h *AppealsHandler) PolicyCheck(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	caseNumber, ok := caseNumberParam(w, r)
	if !ok {
		return
	}

	appeal, err := h.service.PolicyCheck(r.Context(), identity, caseNumber)
	if err != nil {
		httperrors.WriteFault(w, err)
		return
	}
	resp := dto.MessageResponse{Message: fmt.Sprintf("Appeal #%d passed the policy check", appeal.CaseNumber)}
	if appeal.IsPolicyFollowed != nil && !*appeal.IsPolicyFollowed {
		resp.Message = fmt.Sprintf("Appeal #%d failed the policy check", appeal.CaseNumber)
		resp.Detail = "A rejected appeal already exists for this account or content. The appeal can only be rejected."
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *AppealsHandler) Close(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	caseNumber, ok := caseNumberParam(w, r)
	if !ok {
		return
	}
	var req dto.NoteRequest
	if err := decodeJSON(r, &req); err != nil {
		httperrors.WriteDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	appeal, err := h.service.Close(r.Context(), identity, caseNumber, req.ModeratorNote)
	if err != nil {
		httperrors.WriteFault(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.MessageResponse{
		Message: fmt.Sprintf("Appeal #%d closed", appeal.CaseNumber),
		Detail:  appeal.ModeratorNote,
	})
}

func (h *AppealsHandler) Act(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req dto.AppealActionRequest
	if err := decodeJSON(r, &req); err != nil {
		httperrors.WriteDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CaseNumber <= 0 {
		httperrors.WriteDetail(w, http.StatusBadRequest, "case_number must be a positive integer")
		return
	}
	action, ok := enums.ParseAppealAction(req.Action)
	if !ok {
		httperrors.WriteDetail(w, http.StatusBadRequest, "action must be accept or reject")
		return
	}

	res, err := h.service.Act(r.Context(), identity, req.CaseNumber, action, req.ModeratorNote)
	if err != nil {
		httperrors.WriteFault(w, err)
		return
	}
	resp := dto.MessageResponse{
		Message: fmt.Sprintf("Appeal #%d is now %s", res.Appeal.CaseNumber, res.Appeal.Status),
		Detail:  res.Appeal.ModeratorNote,
	}
	if len(res.Related) > 0 {
		parts := make([]string, 0, len(res.Related))
		for _, rc := range res.Related {
			parts = append(parts, fmt.Sprintf("#%d %s", rc.CaseNumber, rc.Status))
		}
		resp.AdditionalMessage = "Related appeals updated: " + strings.Join(parts, ", ")
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func appealStatusQuery(w http.ResponseWriter, r *http.Request) (*enums.AppealStatus, bool) {
	raw := r.URL.Query().Get("status")
	if strings.TrimSpace(raw) == "" {
		return nil, true
	}
	status, ok := enums.ParseAppealStatus(raw)
	if !ok {
		httperrors.WriteDetail(w, http.StatusBadRequest, fmt.Sprintf("unknown appeal status %q", raw))
		return nil, false
	}
	return &status, true
}
