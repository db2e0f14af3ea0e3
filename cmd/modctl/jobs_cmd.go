package main

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	pgrepo "github.com/ivankudzin/trustsafety/internal/repo/postgres"
)

func jobsCommand() *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "inspect and trigger lifecycle jobs",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "print the job table",
				Action: action(runJobsList),
			},
			{
				Name:      "run",
				Usage:     "run one job immediately",
				ArgsUsage: "<job_name>",
				Action:    action(runJobsRun),
			},
		},
	}
}

func runJobsList(_ *cli.Context, e *env) error {
	type row struct {
		Name     string `json:"name"`
		Interval string `json:"interval"`
	}
	var rows []row
	for _, job := range e.core.Scheduler.Jobs() {
		interval := "disabled"
		if job.Interval > 0 {
			interval = job.Interval.String()
		}
		rows = append(rows, row{Name: job.Name, Interval: interval})
	}
	return e.print(rows)
}

func runJobsRun(cctx *cli.Context, e *env) error {
	name := strings.TrimSpace(cctx.Args().First())
	if name == "" {
		return faults.Validation("job name is required")
	}
	known := false
	for _, job := range e.core.Scheduler.Jobs() {
		known = known || job.Name == name
	}
	if !known {
		return faults.NotFound("unknown job %q", name)
	}

	started := time.Now()
	changed, err := e.core.Scheduler.RunOnce(cctx.Context, name)
	if err != nil {
		return err
	}
	return e.print(struct {
		Job     string `json:"job"`
		Changed int    `json:"changed"`
		Elapsed string `json:"elapsed"`
	}{name, changed, time.Since(started).Round(time.Millisecond).String()})
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply the embedded SQL schema to postgres",
		Action: action(func(cctx *cli.Context, e *env) error {
			if e.core.Postgres == nil {
				return faults.Validation("migrate needs postgres; drop --memory")
			}
			if err := pgrepo.Migrate(cctx.Context, e.core.Postgres); err != nil {
				return err
			}
			return e.print(map[string]string{"status": "migrated"})
		}),
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "mint a bearer token for a stored employee",
		Flags: []cli.Flag{&cli.StringFlag{Name: "employee", Usage: "employee id", Required: true}},
		Action: action(func(cctx *cli.Context, e *env) error {
			id, err := uuid.Parse(strings.TrimSpace(cctx.String("employee")))
			if err != nil {
				return faults.Validation("--employee must be a uuid")
			}
			identity, err := e.resolve(cctx.Context, id)
			if err != nil {
				return err
			}
			token, expires, err := e.core.JWT.GenerateAccessToken(identity.EmployeeID, identity.Role)
			if err != nil {
				return err
			}
			return e.print(map[string]string{"access_token": token, "expires_at": expires.UTC().Format(time.RFC3339)})
		}),
	}
}
