package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/services/enforcement"
	"github.com/ivankudzin/trustsafety/internal/services/reports"
	"github.com/ivankudzin/trustsafety/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/trustsafety/internal/transport/http/errors"
)

type ReportsHandler struct {
	service *reports.Service
}

func NewReportsHandler(service *reports.Service) *ReportsHandler {
	return &ReportsHandler{service: service}
}

func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	status, ok := reportStatusQuery(w, r)
	if !ok {
		return
	}

	items, err := h.service.Dashboard(r.Context(), identity, status)
	if err != nil {
		httperrors.WriteFault(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.NewReportList(items))
}

func (h *ReportsHandler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	status, ok := reportStatusQuery(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	employeeID, err := parseUUIDQuery(query.Get("emp_id"))
	if err != nil {
		httperrors.WriteDetail(w, http.StatusBadRequest, "emp_id must be a uuid")
		return
	}
	reportedAt, err := parseDayDate(query.Get("reported_at"))
	if err != nil {
		httperrors.WriteDetail(w, http.StatusBadRequest, "reported_at must be YYYY-MM-DD")
		return
	}

	items, err := h.service.AdminDashboard(r.Context(), identity, reports.AdminQuery{
		Type:       query.Get("type"),
		Status:     status,
		EmployeeID: employeeID,
		ReportedAt: reportedAt,
	})
	if err != nil {
		httperrors.WriteFault(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.NewReportList(items))
}

func (h *ReportsHandler) Detail(w http.ResponseWriter, r *http.Request) {
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
	httperrors.Write(w, http.StatusOK, dto.ReportDetailResponse{
		Report:        dto.NewReportResponse(detail.Report),
		Timeline:      dto.NewTimeline(detail.Events),
		FlaggedBanned: dto.NewFlaggedPosts(detail.FlaggedBanned),
	})
}

func (h *ReportsHandler) Related(w http.ResponseWriter, r *http.Request) {
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
	httperrors.Write(w, http.StatusOK, dto.NewReportList(items))
}

func (h *ReportsHandler) Review(w http.ResponseWriter, r *http.Request) {
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
		Message:            fmt.Sprintf("%d report(s) moved to review", len(res.Valid)),
		Valid:              emptyIfNil(res.Valid),
		Invalid:            emptyIfNil(res.Invalid),
		AlreadyUnderReview: emptyIfNil(res.AlreadyUnderReview),
	})
}

func (h *ReportsHandler) Assign(w http.ResponseWriter, r *http.Request) {
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
		Message:  fmt.Sprintf("%d report(s) assigned", len(res.Assigned)),
		Assigned: emptyIfNil(res.Assigned),
		Invalid:  emptyIfNil(res.Invalid),
	})
}

func (h *ReportsHandler) Close(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.service.Close(r.Context(), identity, caseNumber, req.ModeratorNote)
	if err != nil {
		httperrors.WriteFault(w, err)
		return
	}
	resp := dto.MessageResponse{
		Message: fmt.Sprintf("Report #%d closed", res.Report.CaseNumber),
		Detail:  res.Report.ModeratorNote,
	}
	if len(res.Swept) > 0 {
		resp.AdditionalMessage = "Also closed: " + joinCases(res.Swept)
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *ReportsHandler) ActionAuto(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req dto.AutoActionRequest
	if err := decodeJSON(r, &req); err != nil {
		httperrors.WriteDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CaseNumber <= 0 {
		httperrors.WriteDetail(w, http.StatusBadRequest, "case_number must be a positive integer")
		return
	}

	out, err := h.service.ApplyAuto(r.Context(), identity, req.CaseNumber, req.ReportedUsername)
	if err != nil {
		httperrors.WriteFault(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, outcomeResponse(out))
}

func (h *ReportsHandler) ActionManual(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req dto.ManualActionRequest
	if err := decodeJSON(r, &req); err != nil {
		httperrors.WriteDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CaseNumber <= 0 {
		httperrors.WriteDetail(w, http.StatusBadRequest, "case_number must be a positive integer")
		return
	}
	action, ok := enums.ParseSanctionAction(req.Action)
	if !ok {
		httperrors.WriteDetail(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
		return
	}

	out, err := h.service.ApplyManual(r.Context(), identity, enforcement.ManualAction{
		CaseNumber:       req.CaseNumber,
		ReportedUsername: req.ReportedUsername,
		Action:           action,
		DurationHours:    req.Duration,
		ContentIDs:       req.ContentsToBeBanned,
	})
	if err != nil {
		httperrors.WriteFault(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, outcomeResponse(out))
}

func reportStatusQuery(w http.ResponseWriter, r *http.Request) (*enums.ReportStatus, bool) {
	raw := r.URL.Query().Get("status")
	if strings.TrimSpace(raw) == "" {
		return nil, true
	}
	status, ok := enums.ParseReportStatus(raw)
	if !ok {
		httperrors.WriteDetail(w, http.StatusBadRequest, fmt.Sprintf("unknown report status %q", raw))
		return nil, false
	}
	return &status, true
}

// outcomeResponse renders the moderator-facing summary of an enforcement.
func outcomeResponse(out enforcement.Outcome) dto.MessageResponse {
	resp := dto.MessageResponse{
		Message: fmt.Sprintf("Report #%d is now %s", out.Report.CaseNumber, out.Report.Status),
	}

	d := out.Decision
	switch {
	case d.NoAction():
		resp.Detail = fmt.Sprintf("Violation score +%d (now %d). No action taken.", d.Delta, d.NewFinal)
	case out.Sanction != nil && !out.Sanction.IsActive:
		resp.Detail = fmt.Sprintf("Violation score +%d (now %d). %s for %dh queued from %s.",
			d.Delta, d.NewFinal, d.Action, d.DurationHours, out.Sanction.EnforceActionAt.Format("2006-01-02 15:04 MST"))
	default:
		resp.Detail = fmt.Sprintf("Violation score +%d (now %d). %s for %dh applied.", d.Delta, d.NewFinal, d.Action, d.DurationHours)
	}

	if len(out.Related) > 0 {
		parts := make([]string, 0, len(out.Related))
		for _, rc := range out.Related {
			parts = append(parts, fmt.Sprintf("#%d %s (%s)", rc.CaseNumber, rc.Status, rc.Reason))
		}
		resp.AdditionalMessage = "Related reports updated: " + strings.Join(parts, ", ")
	}
	return resp
}
