package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Count int
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print every sync event as a JSON line",
		Long: `Connect to the relay and print each received sync event.

The connection is kept alive and re-established after failures.

Examples:
  stockwatch watch
  stockwatch watch --url ws://stock.local/ws --count 1`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Count, "count", 0, "exit after this many events (0 = run until interrupted)")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	m := opts.manager()
	defer m.Close()

	sub := m.Subscribe()
	m.Start()

	enc := json.NewEncoder(cmd.OutOrStdout())
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := enc.Encode(ev); err != nil {
				return err
			}
			seen++
			if opts.Count > 0 && seen >= opts.Count {
				return nil
			}
		}
	}
}
