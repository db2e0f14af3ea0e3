package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/ivankudzin/trustsafety/internal/domain/faults"
)

const (
	modID   = "7c0b5f3e-0d1f-4a53-9b8e-6f1e2a3b4c5d"
	adminID = "2f9d8c7b-6a5e-4d3c-8b2a-1f0e9d8c7b6a"
	postID  = "b1c2d3e4-f5a6-4b7c-8d9e-0a1b2c3d4e5f"
)

const seedYAML = `
users:
  - username: dave
    email: dave@example.com
  - username: erin
    email: erin@example.com
employees:
  - id: ` + modID + `
    name: mod
    role: moderator
  - id: ` + adminID + `
    name: admin
    role: admin
contents:
  - id: ` + postID + `
    type: post
    owner: dave
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(&out)
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"modctl", "--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	if err == nil {
		return out.String(), exitOK
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return out.String(), coder.ExitCode()
	}
	return out.String(), exitValidation
}

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{faults.Validation("bad"), exitValidation},
		{faults.NotFound("gone"), exitNotFound},
		{faults.Forbidden("nope"), exitForbidden},
		{faults.Conflict("twice"), exitConflict},
		{fmt.Errorf("wrapped: %w", faults.Conflict("twice")), exitConflict},
		{errors.New("boom"), exitInternal},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v): got %d want %d", tc.err, got, tc.want)
		}
	}

	exit := exitWith(faults.NotFound("report 4 not found"))
	coder, ok := exit.(cli.ExitCoder)
	if !ok || coder.ExitCode() != exitNotFound || !strings.Contains(exit.Error(), "report 4 not found") {
		t.Fatalf("unexpected exit error: %v", exit)
	}
}

func TestSplitArgs(t *testing.T) {
	args, err := splitArgs(`report close 3 --note "not a violation"`)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	want := []string{"report", "close", "3", "--note", "not a violation"}
	if strings.Join(args, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected args: %q", args)
	}
	if _, err := splitArgs(`--note "open`); err == nil {
		t.Fatalf("unterminated quote must fail")
	}
}

func TestBatchRunsAppealFlow(t *testing.T) {
	seed := writeFile(t, "seed.yaml", seedYAML)
	script := writeFile(t, "flow.txt", strings.Join([]string{
		"# a severe post report, overturned on appeal",
		"report file --reporter erin --reported dave --type post --item " + postID + " --reason HATESPHSYM",
		"--actor " + modID + " report review 1",
		"--actor " + modID + " report auto 1 --username dave",
		"appeal file --username dave --report 1 --type post --content " + postID + ` --detail "satire"`,
		"--actor " + modID + " appeal review 1",
		"--actor " + modID + " appeal policy-check 1",
		"--actor " + modID + ` appeal act 1 --action accept --note "context missed"`,
		"appeal show 1",
	}, "\n"))

	out, code := run(t, "--memory", "--seed", seed, "batch", script)
	if code != exitOK {
		t.Fatalf("unexpected exit code: got %d want %d\n%s", code, exitOK, out)
	}
	if !strings.Contains(out, `"status": "ACP"`) {
		t.Fatalf("appeal should end accepted:\n%s", out)
	}
	if !strings.Contains(out, `"violation_score": 187`) {
		t.Fatalf("auto action should report the new score:\n%s", out)
	}
}

func TestFailuresMapToExitCodes(t *testing.T) {
	seed := writeFile(t, "seed.yaml", seedYAML)
	twiceClosed := writeFile(t, "close.txt", strings.Join([]string{
		"report file --reporter erin --reported dave --type post --item " + postID + " --reason SPAM",
		"--actor " + modID + " report review 1",
		"--actor " + modID + " report close 1",
		"--actor " + modID + " report close 1",
	}, "\n"))

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"bad case number", []string{"--memory", "report", "show", "abc"}, exitValidation},
		{"missing report", []string{"--memory", "--seed", seed, "report", "show", "9"}, exitNotFound},
		{"moderator assigning", []string{"--memory", "--seed", seed, "--actor", modID, "report", "assign", "--to", modID, "1"}, exitForbidden},
		{"unknown actor", []string{"--memory", "--seed", seed, "--actor", postID, "report", "review", "1"}, exitForbidden},
		{"closing twice", []string{"--memory", "--seed", seed, "batch", twiceClosed}, exitConflict},
		{"migrate without postgres", []string{"--memory", "migrate"}, exitValidation},
		{"unknown job", []string{"--memory", "jobs", "run", "reindex"}, exitNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, code := run(t, tc.args...)
			if code != tc.want {
				t.Fatalf("unexpected exit code: got %d want %d\n%s", code, tc.want, out)
			}
		})
	}
}

func TestJobsRunInMemory(t *testing.T) {
	out, code := run(t, "--memory", "jobs", "run", "remove_temp_ban")
	if code != exitOK {
		t.Fatalf("unexpected exit code: got %d want %d\n%s", code, exitOK, out)
	}
	if !strings.Contains(out, `"changed": 0`) {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
