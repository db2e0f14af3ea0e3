package main

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/services/enforcement"
	"github.com/ivankudzin/trustsafety/internal/services/reports"
	"github.com/ivankudzin/trustsafety/internal/transport/http/dto"
)

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "file, review and act on reports",
		Subcommands: []*cli.Command{
			{
				Name:  "file",
				Usage: "file a new report",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "reporter", Required: true},
					&cli.StringFlag{Name: "reported", Required: true},
					&cli.StringFlag{Name: "type", Usage: "post, comment, account or message", Required: true},
					&cli.StringFlag{Name: "item", Usage: "reported item id; defaults to the reported user for account reports"},
					&cli.StringFlag{Name: "reason", Required: true},
				},
				Action: action(runReportFile),
			},
			{
				Name:      "show",
				Usage:     "print a report with its timeline",
				ArgsUsage: "<case_number>",
				Action:    action(runReportShow),
			},
			{
				Name:      "review",
				Usage:     "move open reports under review for the actor",
				ArgsUsage: "<case_number>...",
				Action:    action(runReportReview),
			},
			{
				Name:      "assign",
				Usage:     "hand reports to a moderator (admin only)",
				ArgsUsage: "<case_number>...",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "to", Usage: "employee id", Required: true}},
				Action:    action(runReportAssign),
			},
			{
				Name:      "close",
				Usage:     "dismiss a report without enforcement",
				ArgsUsage: "<case_number>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "note"}},
				Action:    action(runReportClose),
			},
			{
				Name:      "auto",
				Usage:     "apply the catalog decision to a report",
				ArgsUsage: "<case_number>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "username", Required: true}},
				Action:    action(runReportAuto),
			},
			{
				Name:      "manual",
				Usage:     "apply a moderator chosen action to a report",
				ArgsUsage: "<case_number>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "action", Usage: "NA, RSP, RSF, TBN or PBN", Required: true},
					&cli.IntFlag{Name: "duration", Usage: "hours"},
					&cli.StringSliceFlag{Name: "content", Usage: "post id to ban; repeat for several"},
				},
				Action: action(runReportManual),
			},
		},
	}
}

func runReportFile(cctx *cli.Context, e *env) error {
	itemType, ok := enums.ParseContentType(cctx.String("type"))
	if !ok {
		return faults.Validation("unknown item type %q", cctx.String("type"))
	}
	itemID, err := optionalUUID(cctx.String("item"))
	if err != nil {
		return faults.Validation("--item must be a uuid")
	}

	report, err := e.core.Reports.File(cctx.Context, reports.FileRequest{
		ReporterUsername: cctx.String("reporter"),
		ReportedUsername: cctx.String("reported"),
		ItemType:         itemType,
		ItemID:           itemID,
		Reason:           enums.NormalizeReportReason(cctx.String("reason")),
	})
	if err != nil {
		return err
	}
	return e.print(dto.NewReportResponse(report))
}

func runReportShow(cctx *cli.Context, e *env) error {
	caseNumber, err := singleCase(cctx)
	if err != nil {
		return err
	}
	detail, err := e.core.Reports.Detail(cctx.Context, caseNumber)
	if err != nil {
		return err
	}
	return e.print(dto.ReportDetailResponse{
		Report:        dto.NewReportResponse(detail.Report),
		Timeline:      dto.NewTimeline(detail.Events),
		FlaggedBanned: dto.NewFlaggedPosts(detail.FlaggedBanned),
	})
}

func runReportReview(cctx *cli.Context, e *env) error {
	actor, err := e.actor(cctx)
	if err != nil {
		return err
	}
	cases, err := caseList(cctx)
	if err != nil {
		return err
	}
	res, err := e.core.Reports.MarkReview(cctx.Context, actor, cases)
	if err != nil {
		return err
	}
	return e.print(dto.ReviewResponse{
		Message:            "reports moved to review",
		Valid:              nonNil(res.Valid),
		Invalid:            nonNil(res.Invalid),
		AlreadyUnderReview: nonNil(res.AlreadyUnderReview),
	})
}

func runReportAssign(cctx *cli.Context, e *env) error {
	actor, err := e.actor(cctx)
	if err != nil {
		return err
	}
	cases, err := caseList(cctx)
	if err != nil {
		return err
	}
	to, err := uuid.Parse(strings.TrimSpace(cctx.String("to")))
	if err != nil {
		return faults.Validation("--to must be an employee id")
	}
	res, err := e.core.Reports.Assign(cctx.Context, actor, cases, to)
	if err != nil {
		return err
	}
	return e.print(dto.AssignResponse{Message: "reports assigned", Assigned: nonNil(res.Assigned), Invalid: nonNil(res.Invalid)})
}

func runReportClose(cctx *cli.Context, e *env) error {
	actor, err := e.actor(cctx)
	if err != nil {
		return err
	}
	caseNumber, err := singleCase(cctx)
	if err != nil {
		return err
	}
	res, err := e.core.Reports.Close(cctx.Context, actor, caseNumber, cctx.String("note"))
	if err != nil {
		return err
	}
	return e.print(struct {
		Report dto.ReportResponse `json:"report"`
		Swept  []int64            `json:"also_closed"`
	}{dto.NewReportResponse(res.Report), nonNil(res.Swept)})
}

func runReportAuto(cctx *cli.Context, e *env) error {
	actor, err := e.actor(cctx)
	if err != nil {
		return err
	}
	caseNumber, err := singleCase(cctx)
	if err != nil {
		return err
	}
	out, err := e.core.Reports.ApplyAuto(cctx.Context, actor, caseNumber, cctx.String("username"))
	if err != nil {
		return err
	}
	return e.print(newOutcomeOutput(out))
}

func runReportManual(cctx *cli.Context, e *env) error {
	actor, err := e.actor(cctx)
	if err != nil {
		return err
	}
	caseNumber, err := singleCase(cctx)
	if err != nil {
		return err
	}
	act, ok := enums.ParseSanctionAction(cctx.String("action"))
	if !ok {
		return faults.Validation("unknown action %q", cctx.String("action"))
	}
	var contentIDs []uuid.UUID
	for _, raw := range cctx.StringSlice("content") {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return faults.Validation("--content %q is not a uuid", raw)
		}
		contentIDs = append(contentIDs, id)
	}

	out, err := e.core.Reports.ApplyManual(cctx.Context, actor, enforcement.ManualAction{
		CaseNumber:       caseNumber,
		ReportedUsername: cctx.String("username"),
		Action:           act,
		DurationHours:    cctx.Int("duration"),
		ContentIDs:       contentIDs,
	})
	if err != nil {
		return err
	}
	return e.print(newOutcomeOutput(out))
}

type relatedOutput struct {
	CaseNumber int64  `json:"case_number"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

type outcomeOutput struct {
	Report         dto.ReportResponse `json:"report"`
	Delta          int                `json:"delta"`
	ViolationScore int                `json:"violation_score"`
	Action         string             `json:"action"`
	DurationHours  int                `json:"duration_hours"`
	Queued         bool               `json:"queued"`
	Related        []relatedOutput    `json:"related,omitempty"`
}

func newOutcomeOutput(out enforcement.Outcome) outcomeOutput {
	res := outcomeOutput{
		Report:         dto.NewReportResponse(out.Report),
		Delta:          out.Decision.Delta,
		ViolationScore: out.Decision.NewFinal,
		Action:         string(out.Decision.Action),
		DurationHours:  out.Decision.DurationHours,
		Queued:         out.Sanction != nil && !out.Sanction.IsActive,
	}
	for _, rc := range out.Related {
		res.Related = append(res.Related, relatedOutput{CaseNumber: rc.CaseNumber, Status: string(rc.Status), Reason: string(rc.Reason)})
	}
	return res
}

func singleCase(cctx *cli.Context) (int64, error) {
	if cctx.NArg() != 1 {
		return 0, faults.Validation("expected exactly one case number")
	}
	return parseCase(cctx.Args().First())
}

func caseList(cctx *cli.Context) ([]int64, error) {
	if cctx.NArg() == 0 {
		return nil, faults.Validation("expected at least one case number")
	}
	out := make([]int64, 0, cctx.NArg())
	for _, raw := range cctx.Args().Slice() {
		c, err := parseCase(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func parseCase(raw string) (int64, error) {
	c, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil || c <= 0 {
		return 0, faults.Validation("case number %q must be a positive integer", raw)
	}
	return c, nil
}

func nonNil(cases []int64) []int64 {
	if cases == nil {
		return []int64{}
	}
	return cases
}
