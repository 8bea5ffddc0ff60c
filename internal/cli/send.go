package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-realtime-stock/internal/stock"
	"github.com/spf13/cobra"
)

// SendOptions holds flags for the send command.
type SendOptions struct {
	*RootOptions
	Kind    string
	Payload string
	Timeout time.Duration
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one sync event to every other channel",
		Long: `Queue one sync event and wait until it has been written to the relay.

Examples:
  stockwatch send --kind record-deleted --payload '{"id":"42"}'
  stockwatch send --kind import-applied --payload '{"count":12}'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "event type (required)")
	_ = cmd.MarkFlagRequired("kind")
	cmd.Flags().StringVar(&opts.Payload, "payload", "", "JSON payload")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "how long to wait for the relay")

	return cmd
}

func runSend(opts *SendOptions, cmd *cobra.Command) error {
	kind := stock.Kind(opts.Kind)
	if !kind.IsSync() {
		return fmt.Errorf("unknown event kind %q", opts.Kind)
	}
	ev := stock.Event{Type: kind}
	if opts.Payload != "" {
		if !json.Valid([]byte(opts.Payload)) {
			return fmt.Errorf("payload is not valid JSON")
		}
		ev.Payload = json.RawMessage(opts.Payload)
	}

	m := opts.manager()
	defer m.Close()
	m.Start()
	m.Send(ev)

	ctx := cmd.Context()
	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		if m.Status().Queued == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", kind)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("relay not reachable within %s, event not sent", opts.Timeout)
		case <-tick.C:
		}
	}
}
