package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/specforge/specforge/pkg/session"
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status <session-id>",
		Short:   "Show detailed session status",
		Example: `  specforge status sess-1761998400000`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.shutdown()

			sess, err := rt.store.Load(args[0])
			if err != nil {
				return err
			}
			rec, err := rt.store.LoadErrorRecord(sess.ID)
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"session": sessionSummaries([]*session.Session{sess})[0],
					"error":   rec,
				})
			}

			fmt.Printf("session:   %s\n", sess.ID)
			fmt.Printf("status:    %s\n", sess.Status)
			fmt.Printf("step:      %s (%d/%d checkpoints)\n",
				sess.CurrentStep, len(sess.Checkpoints), len(session.Steps()))
			fmt.Printf("created:   %s\n", sess.CreatedAt.Local().Format(time.RFC3339))
			fmt.Printf("updated:   %s\n", sess.UpdatedAt.Local().Format(time.RFC3339))

			if len(sess.Checkpoints) > 0 {
				fmt.Println("checkpoints:")
				for _, cp := range sess.Checkpoints {
					fmt.Printf("  %-16s %s  provider=%s  duration=%s\n",
						cp.Step, cp.Timestamp.Local().Format(time.RFC3339),
						cp.Metadata.Provider, cp.Metadata.Duration.Round(time.Millisecond))
				}
			}
			if len(sess.Outputs) > 0 {
				fmt.Println("outputs:")
				for _, cp := range sess.Checkpoints {
					for _, path := range cp.Outputs {
						fmt.Printf("  %s\n", path)
					}
				}
			}
			if rec != nil {
				fmt.Printf("last error (%s, step %s): %s\n",
					rec.Timestamp.Local().Format(time.RFC3339), rec.Step, rec.Message)
			}
			if sess.Status.Resumable() {
				fmt.Printf("resume with: specforge resume %s\n", sess.ID)
			}
			return nil
		},
	}
	return cmd
}
