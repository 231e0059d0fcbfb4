package studio

import (
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/mixdeskhq/mixdesk/internal/studio/client"
	"github.com/mixdeskhq/mixdesk/internal/studio/config"
	"github.com/mixdeskhq/mixdesk/pkg/artifact"
	"github.com/mixdeskhq/mixdesk/pkg/version"
)

// Studio wires the pieces together: the composer client, the job
// controller, the reachability checker and the console server.
type Studio struct {
	config      *config.Config
	listener    net.Listener
	reachStopCh chan chan any
}

func New(cfg *config.Config, listener net.Listener) *Studio {
	return &Studio{
		config:      cfg,
		listener:    listener,
		reachStopCh: make(chan chan any),
	}
}

// Run blocks serving the console until ctx is cancelled or the server
// fails. The controller is closed as soon as ctx is done, so no poll
// outlives the console shutdown.
func (s *Studio) Run(ctx context.Context) error {
	zap.S().Named("studio").Infof("Starting studio: %s", version.Get())
	defer zap.S().Named("studio").Info("Studio stopped")
	zap.S().Named("studio").Infof("Configuration: %s", s.config.String())

	composer, err := newComposerClient(s.config)
	if err != nil {
		return err
	}

	controller := NewController(composer, WithPollInterval(s.config.PollInterval.Duration))
	defer controller.Close()
	go func() {
		<-ctx.Done()
		controller.Close()
	}()

	checker, err := NewReachabilityChecker(
		s.config.Composer.Service.Server,
		s.config.DataDir,
		s.config.ReachabilityInterval.Duration,
	)
	if err != nil {
		return err
	}
	checker.Start(s.reachStopCh)
	defer s.stopReachability()

	// downloads get their own client: the request timeout that bounds the
	// api calls would cut long audio transfers short
	fetcher := artifact.NewFetcher(nil, client.Editors(&s.config.Composer.Config)...)

	server := NewServer(s.config, controller, checker, fetcher, s.listener)
	return server.Run(ctx)
}

func (s *Studio) stopReachability() {
	c := make(chan any)
	s.reachStopCh <- c
	<-c
	zap.S().Named("studio").Info("reachability checker stopped")
}

func newComposerClient(cfg *config.Config) (client.Composer, error) {
	composer, err := client.NewFromConfig(&cfg.Composer.Config)
	if err != nil {
		return nil, err
	}
	return client.NewInstrumented(composer), nil
}
