package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := newApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		// Errors from actions already exited through cli.Exit; what is left
		// here is flag parsing and usage.
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitValidation)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "modctl",
		Usage:     "operate the trust and safety moderation core",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the YAML config",
				EnvVars: []string{"APP_CONFIG"},
				Value:   "configs/config.yaml",
			},
			&cli.BoolFlag{
				Name:  "memory",
				Usage: "use an in-process store and an embedded redis instead of postgres and redis",
			},
			&cli.StringFlag{
				Name:  "seed",
				Usage: "YAML fixture of users, employees and contents to load before the command",
			},
			&cli.StringFlag{
				Name:    "actor",
				Usage:   "employee id acting on cases",
				EnvVars: []string{"MODCTL_ACTOR"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "overrides log.level from the config",
				Value: "warn",
			},
		},
		Before: setupEnv,
		After:  teardownEnv,
		Commands: []*cli.Command{
			migrateCommand(),
			reportCommand(),
			appealCommand(),
			jobsCommand(),
			tokenCommand(),
			batchCommand(),
		},
	}
}
