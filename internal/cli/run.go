package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/mixdeskhq/mixdesk/internal/studio"
	"github.com/mixdeskhq/mixdesk/internal/studio/config"
	"github.com/mixdeskhq/mixdesk/pkg/log"
)

type RunOptions struct {
	ConfigFile string
}

func DefaultRunOptions() *RunOptions {
	return &RunOptions{}
}

func NewCmdRun() *cobra.Command {
	o := DefaultRunOptions()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the studio console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *RunOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigFile, "config", "c", o.ConfigFile, "Path to the studio's configuration file")
}

func (o *RunOptions) Run(ctx context.Context, args []string) error {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}
	if err := cfg.CreateDataDir(); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	logger := log.InitLog(log.ParseLevel(cfg.LogLevel))
	defer func() { _ = logger.Sync() }()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if cfg.MetricsAddress != "" {
		go func() {
			defer cancel()
			listener, err := newListener(cfg.MetricsAddress)
			if err != nil {
				zap.S().Named("cli").Errorw("creating metrics listener", "error", err)
				return
			}
			if err := studio.NewMetricServer(cfg.MetricsAddress, listener).Run(ctx); err != nil {
				zap.S().Named("cli").Errorw("running metrics server", "error", err)
			}
		}()
	}

	listener, err := newListener(cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("creating listener: %w", err)
	}

	return studio.New(cfg, listener).Run(ctx)
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
