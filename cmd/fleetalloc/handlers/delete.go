package handlers

import (
	"context"
	"fmt"
)

// Delete handles the delete command. Deleting logical IDs that were never
// allocated succeeds without touching anything.
func Delete(ctx context.Context, opts Options, logicalIDs []string) (err error) {
	e, err := newEnv(opts)
	if err != nil {
		return err
	}
	defer func() { err = e.finish(err) }()

	if err := e.orch.Delete(ctx, e.cfg.Template, logicalIDs); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	e.log.Info("deleted instances", "logicalIDs", logicalIDs)
	return nil
}
