package cli

import (
	"github.com/ariefcatur/go-realtime-stock/internal/syncclient"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	URL      string
	ClientID string
	Verbose  bool
}

// NewRootCommand creates the root command for stockwatch.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stockwatch",
		Short: "stockwatch - talk to the stock sync relay",
		Long:  "Watch and send stock sync events over the relay channel.",
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.URL, "url", "ws://localhost:8081/ws", "relay websocket URL")
	cmd.PersistentFlags().StringVar(&opts.ClientID, "client-id", "", "channel id (random when empty)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewSendCommand(opts))

	return cmd
}

func (o *RootOptions) logger() *zap.Logger {
	if !o.Verbose {
		return zap.NewNop()
	}
	lg, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return lg
}

func (o *RootOptions) manager() *syncclient.Manager {
	return syncclient.New(syncclient.Config{URL: o.URL, ClientID: o.ClientID}, nil, o.logger())
}
