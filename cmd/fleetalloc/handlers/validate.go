package handlers

import (
	"context"
	"fmt"
	"strings"
)

// Validate handles the validate command. Problems are printed one per line;
// the command fails when any of them is an error.
func Validate(ctx context.Context, opts Options) (err error) {
	e, err := newEnv(opts)
	if err != nil {
		return err
	}
	defer func() { err = e.finish(err) }()

	problems := e.orch.Validate(ctx, e.cp, e.cfg.Template)
	errCount := 0
	for _, p := range problems {
		fmt.Fprintln(stdout, p.Error())
		if p.IsError() {
			errCount++
		}
	}
	if errCount > 0 {
		return fmt.Errorf("template has %d error(s)", errCount)
	}
	fmt.Fprintln(stdout, "template is valid")
	return nil
}

// preflight runs the live template checks and fails on the first batch of
// errors, before anything is created.
func preflight(ctx context.Context, e *env) error {
	var msgs []string
	for _, p := range e.orch.Validate(ctx, e.cp, e.cfg.Template) {
		if p.IsError() {
			msgs = append(msgs, p.Error())
			continue
		}
		e.log.Info("template warning", "field", p.Field, "message", p.Message)
	}
	if len(msgs) > 0 {
		return fmt.Errorf("template validation failed:\n  %s", strings.Join(msgs, "\n  "))
	}
	return nil
}
