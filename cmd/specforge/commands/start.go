package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

func newStartCommand() *cobra.Command {
	var (
		docPath string
		wait    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new pipeline session",
		Long: `Start a new session over a source document and run the pipeline.

The session id is printed first, so the run can always be resumed even if
this process is interrupted. Each completed step is checkpointed; on
failure or deadline expiry, 'specforge resume <id>' continues from the
last checkpoint.`,
		Example: `  # Start a run over a source document
  specforge start --doc ./product-brief.md

  # Wait up to a minute for another run to release the workspace
  specforge start --doc ./product-brief.md --wait 1m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(docPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(abs); err != nil {
				return fmt.Errorf("source document: %w", err)
			}

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.shutdown()

			// The lock comes first: the initial session write is already
			// a workspace mutation.
			return rt.withWorkspaceLock(cmd.Context(), wait, func() error {
				sess, err := rt.store.Init(map[string]string{"doc": abs}, rt.cfg.RunConfig())
				if err != nil {
					return err
				}
				fmt.Printf("session %s started\n", sess.ID)
				rt.metrics.SessionStarted()

				return rt.runSession(cmd.Context(), sess)
			})
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "source document path")
	cmd.Flags().DurationVar(&wait, "wait", 0, "how long to wait for the workspace lock")
	if err := cmd.MarkFlagRequired("doc"); err != nil {
		panic(err)
	}

	return cmd
}
