package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ivankudzin/trustsafety/internal/domain/faults"
)

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "run one command per line against the same store; stops at the first failure",
		ArgsUsage: "<script|->",
		Action: func(cctx *cli.Context) error {
			return exitWith(runBatch(cctx, envFrom(cctx)))
		},
	}
}

func runBatch(cctx *cli.Context, e *env) error {
	path := cctx.Args().First()
	if path == "" {
		return faults.Validation("script path is required; use - for stdin")
	}
	var src io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return faults.Validation("open script: %v", err)
		}
		defer f.Close()
		src = f
	}

	scanner := bufio.NewScanner(src)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args, err := splitArgs(line)
		if err != nil {
			return faults.Validation("line %d: %v", lineNo, err)
		}
		if len(args) > 0 && args[0] == "batch" {
			return faults.Validation("line %d: batch cannot nest", lineNo)
		}

		sub := newApp(e.out)
		sub.Before = func(c *cli.Context) error {
			c.App.Metadata = map[string]interface{}{envKey: e}
			return nil
		}
		sub.After = nil
		sub.ExitErrHandler = func(*cli.Context, error) {}
		if err := sub.Run(append([]string{"modctl"}, args...)); err != nil {
			code := exitInternal
			if coder, ok := err.(cli.ExitCoder); ok {
				code = coder.ExitCode()
			}
			return cli.Exit(fmt.Sprintf("line %d: %v", lineNo, err), code)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return nil
}

// splitArgs splits a script line on spaces, keeping double-quoted runs together.
func splitArgs(line string) ([]string, error) {
	var args []string
	var cur strings.Builder
	inQuote, started := false, false
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case (r == ' ' || r == '\t') && !inQuote:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
