package cmd

import (
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/health"
)

var errDisconnected = errors.New("API is unreachable")

func newPingCmd(a *app) *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the API answers",
		Long: `Send an OPTIONS request to the API root. Any answer below 500 counts
as connected. With --watch the check repeats until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checker := health.NewChecker(a.client.BaseURL(), nil, a.cfg.Client.HealthTimeout)
			if interval <= 0 {
				interval = a.cfg.Client.HealthInterval
			}
			monitor := health.NewMonitor(checker, interval, nil, a.logger)
			out := cmd.OutOrStdout()

			if !watch {
				st := monitor.CheckNow(cmd.Context())
				writeHealth(out, a.client.BaseURL(), st)
				if st.State != health.StateConnected {
					return errDisconnected
				}
				return nil
			}

			monitor.OnCheck(func(st health.Status) { writeHealth(out, a.client.BaseURL(), st) })
			monitor.Run(cmd.Context())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep checking until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between checks with --watch (env API_HEALTH_INTERVAL)")
	return cmd
}

func writeHealth(w io.Writer, target string, st health.Status) {
	stamp := st.LastChecked.Format(time.TimeOnly)
	if st.Err != nil {
		printf(w, "%s %s %s: %v\n", stamp, st.State, target, st.Err)
		return
	}
	printf(w, "%s %s %s\n", stamp, st.State, target)
}
