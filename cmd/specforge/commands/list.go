package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/specforge/specforge/pkg/session"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions in the workspace",
		Example: `  specforge list
  specforge list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.shutdown()

			sessions, err := rt.store.List()
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(sessionSummaries(sessions))
			}

			if len(sessions) == 0 {
				fmt.Println("no sessions")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tSTATUS\tSTEP\tCHECKPOINTS\tUPDATED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n",
					s.ID, s.Status, s.CurrentStep,
					len(s.Checkpoints), len(session.Steps()),
					s.UpdatedAt.Local().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	return cmd
}

// sessionSummary is the JSON shape of one list entry.
type sessionSummary struct {
	ID          string    `json:"session_id"`
	Status      string    `json:"status"`
	CurrentStep string    `json:"current_step"`
	Checkpoints int       `json:"checkpoints"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func sessionSummaries(sessions []*session.Session) []sessionSummary {
	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionSummary{
			ID:          s.ID,
			Status:      string(s.Status),
			CurrentStep: string(s.CurrentStep),
			Checkpoints: len(s.Checkpoints),
			UpdatedAt:   s.UpdatedAt,
		})
	}
	return out
}
