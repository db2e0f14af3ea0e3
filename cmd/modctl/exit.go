package main

import (
	"github.com/urfave/cli/v2"

	"github.com/ivankudzin/trustsafety/internal/domain/faults"
)

const (
	exitOK         = 0
	exitInternal   = 1
	exitValidation = 2
	exitNotFound   = 3
	exitForbidden  = 4
	exitConflict   = 5
)

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch faults.KindOf(err) {
	case faults.KindValidation:
		return exitValidation
	case faults.KindNotFound:
		return exitNotFound
	case faults.KindForbidden:
		return exitForbidden
	case faults.KindConflict:
		return exitConflict
	}
	return exitInternal
}

// exitWith turns err into a cli exit error carrying the mapped code.
func exitWith(err error) error {
	if err == nil {
		return nil
	}
	if coder, ok := err.(cli.ExitCoder); ok {
		return coder
	}
	msg := faults.Message(err)
	if faults.KindOf(err) == faults.KindInternal {
		msg = err.Error()
	}
	return cli.Exit("error: "+msg, exitCode(err))
}

// action wraps a command body so every returned error exits with its code.
func action(fn func(cctx *cli.Context, e *env) error) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		return exitWith(fn(cctx, envFrom(cctx)))
	}
}
