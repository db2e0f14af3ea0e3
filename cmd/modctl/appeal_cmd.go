package main

import (
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/services/appeals"
	"github.com/ivankudzin/trustsafety/internal/transport/http/dto"
)

func appealCommand() *cli.Command {
	return &cli.Command{
		Name:  "appeal",
		Usage: "file, check and decide appeals",
		Subcommands: []*cli.Command{
			{
				Name:  "file",
				Usage: "file an appeal against a resolved report",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.Int64Flag{Name: "report", Usage: "case number of the resolved report", Required: true},
					&cli.StringFlag{Name: "type", Usage: "post, comment or account", Required: true},
					&cli.StringFlag{Name: "content", Usage: "content id; ignored for account appeals"},
					&cli.StringFlag{Name: "detail"},
				},
				Action: action(runAppealFile),
			},
			{
				Name:      "show",
				Usage:     "print an appeal with its report and timeline",
				ArgsUsage: "<case_number>",
				Action:    action(runAppealShow),
			},
			{
				Name:      "review",
				Usage:     "move open appeals under review for the actor",
				ArgsUsage: "<case_number>...",
				Action:    action(runAppealReview),
			},
			{
				Name:      "assign",
				Usage:     "hand appeals to a moderator (admin only)",
				ArgsUsage: "<case_number>...",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "to", Usage: "employee id", Required: true}},
				Action:    action(runAppealAssign),
			},
			{
				Name:      "policy-check",
				Usage:     "record whether the appeal may be decided on its merits",
				ArgsUsage: "<case_number>",
				Action:    action(runAppealPolicyCheck),
			},
			{
				Name:      "close",
				Usage:     "close an appeal without a verdict",
				ArgsUsage: "<case_number>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "note"}},
				Action:    action(runAppealClose),
			},
			{
				Name:      "act",
				Usage:     "accept or reject an appeal",
				ArgsUsage: "<case_number>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "action", Usage: "accept or reject", Required: true},
					&cli.StringFlag{Name: "note"},
				},
				Action: action(runAppealAct),
			},
		},
	}
}

func runAppealFile(cctx *cli.Context, e *env) error {
	contentType, ok := enums.ParseContentType(cctx.String("type"))
	if !ok {
		return faults.Validation("unknown content type %q", cctx.String("type"))
	}
	contentID, err := optionalUUID(cctx.String("content"))
	if err != nil {
		return faults.Validation("--content must be a uuid")
	}
	appeal, err := e.core.Appeals.File(cctx.Context, appeals.FileRequest{
		Username:         cctx.String("username"),
		ReportCaseNumber: cctx.Int64("report"),
		ContentType:      contentType,
		ContentID:        contentID,
		Detail:           cctx.String("detail"),
	})
	if err != nil {
		return err
	}
	return e.print(dto.NewAppealResponse(appeal))
}

func runAppealShow(cctx *cli.Context, e *env) error {
	caseNumber, err := singleCase(cctx)
	if err != nil {
		return err
	}
	detail, err := e.core.Appeals.Detail(cctx.Context, caseNumber)
	if err != nil {
		return err
	}
	return e.print(dto.AppealDetailResponse{
		Appeal:   dto.NewAppealResponse(detail.Appeal),
		Report:   dto.NewReportResponse(detail.Report),
		Timeline: dto.NewTimeline(detail.Events),
	})
}

func runAppealReview(cctx *cli.Context, e *env) error {
	actor, err := e.actor(cctx)
	if err != nil {
		return err
	}
	cases, err := caseList(cctx)
	if err != nil {
		return err
	}
	res, err := e.core.Appeals.MarkReview(cctx.Context, actor, cases)
	if err != nil {
		return err
	}
	return e.print(dto.ReviewResponse{
		Message:            "appeals moved to review",
		Valid:              nonNil(res.Valid),
		Invalid:            nonNil(res.Invalid),
		AlreadyUnderReview: nonNil(res.AlreadyUnderReview),
	})
}

func runAppealAssign(cctx *cli.Context, e *env) error {
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
	res, err := e.core.Appeals.Assign(cctx.Context, actor, cases, to)
	if err != nil {
		return err
	}
	return e.print(dto.AssignResponse{Message: "appeals assigned", Assigned: nonNil(res.Assigned), Invalid: nonNil(res.Invalid)})
}

func runAppealPolicyCheck(cctx *cli.Context, e *env) error {
	actor, err := e.actor(cctx)
	if err != nil {
		return err
	}
	caseNumber, err := singleCase(cctx)
	if err != nil {
		return err
	}
	appeal, err := e.core.Appeals.PolicyCheck(cctx.Context, actor, caseNumber)
	if err != nil {
		return err
	}
	return e.print(dto.NewAppealResponse(appeal))
}

func runAppealClose(cctx *cli.Context, e *env) error {
	actor, err := e.actor(cctx)
	if err != nil {
		return err
	}
	caseNumber, err := singleCase(cctx)
	if err != nil {
		return err
	}
	appeal, err := e.core.Appeals.Close(cctx.Context, actor, caseNumber, cctx.String("note"))
	if err != nil {
		return err
	}
	return e.print(dto.NewAppealResponse(appeal))
}

func runAppealAct(cctx *cli.Context, e *env) error {
	actor, err := e.actor(cctx)
	if err != nil {
		return err
	}
	caseNumber, err := singleCase(cctx)
	if err != nil {
		return err
	}
	act, ok := enums.ParseAppealAction(cctx.String("action"))
	if !ok {
		return faults.Validation("action must be accept or reject")
	}
	res, err := e.core.Appeals.Act(cctx.Context, actor, caseNumber, act, cctx.String("note"))
	if err != nil {
		return err
	}

	out := struct {
		Appeal  dto.AppealResponse `json:"appeal"`
		Related []relatedOutput    `json:"related,omitempty"`
	}{Appeal: dto.NewAppealResponse(res.Appeal)}
	for _, rc := range res.Related {
		out.Related = append(out.Related, relatedOutput{CaseNumber: rc.CaseNumber, Status: string(rc.Status)})
	}
	return e.print(out)
}
