package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/specforge/specforge/pkg/session"
)

func newResumeCommand() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Resume a failed, paused, or interrupted session",
		Long: `Resume a session from its last checkpoint.

Steps that already completed are skipped; the run continues exactly where
it stopped. Completed sessions cannot be resumed.`,
		Example: `  specforge resume sess-1761998400000`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.shutdown()

			// Acquire the lock before touching session state, so the
			// resumed view cannot go stale behind a concurrent run.
			return rt.withWorkspaceLock(cmd.Context(), wait, func() error {
				sess, err := rt.resumeSession(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("session %s resumed at step %s (%d/%d checkpoints)\n",
					sess.ID, sess.CurrentStep, len(sess.Checkpoints), len(session.Steps()))

				return rt.runSession(cmd.Context(), sess)
			})
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "how long to wait for the workspace lock")

	return cmd
}
