package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	v1 "github.com/mixdeskhq/mixdesk/api/v1"
	"github.com/mixdeskhq/mixdesk/internal/studio"
	"github.com/mixdeskhq/mixdesk/internal/studio/client"
	"github.com/mixdeskhq/mixdesk/internal/util"
	"github.com/mixdeskhq/mixdesk/pkg/artifact"
)

type SubmitOptions struct {
	ServerUrl    string
	Prompt       string
	Output       string
	PollInterval time.Duration
}

func DefaultSubmitOptions() *SubmitOptions {
	return &SubmitOptions{
		ServerUrl:    util.GetEnv("MIXDESK_COMPOSER_URL", client.DefaultComposerURL),
		PollInterval: studio.DefaultPollInterval,
	}
}

func NewCmdSubmit() *cobra.Command {
	o := DefaultSubmitOptions()
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a mashup prompt and follow the job to its end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *SubmitOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ServerUrl, "server-url", "s", o.ServerUrl, "Address of the composer service")
	fs.StringVarP(&o.Prompt, "prompt", "p", o.Prompt, "Mashup prompt, e.g. \"mashup of song A and song B\"")
	fs.StringVarP(&o.Output, "output", "o", o.Output, "Download the finished mashup to this file instead of printing its URL")
	fs.DurationVar(&o.PollInterval, "poll-interval", o.PollInterval, "Interval between two job status polls")
}

func (o *SubmitOptions) Validate(args []string) error {
	if strings.TrimSpace(o.Prompt) == "" {
		return fmt.Errorf("prompt must not be empty")
	}
	if o.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	return nil
}

func (o *SubmitOptions) Run(ctx context.Context, args []string) error {
	cfg := client.NewDefault()
	cfg.Service.Server = o.ServerUrl
	if err := cfg.Validate(); err != nil {
		return err
	}

	composer, err := client.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating composer client: %w", err)
	}

	controller := studio.NewController(client.NewInstrumented(composer), studio.WithPollInterval(o.PollInterval))
	defer controller.Close()

	if err := controller.Submit(o.Prompt); err != nil {
		return err
	}

	snap, err := o.follow(ctx, controller)
	if err != nil {
		return err
	}

	if snap.Phase != v1.PhaseComplete {
		return fmt.Errorf("job %q ended in phase %q", snap.JobID, snap.Phase)
	}

	downloadURL, err := studio.ArtifactDownloadURL(o.ServerUrl, snap.ArtifactRef)
	if err != nil {
		return fmt.Errorf("resolving artifact url: %w", err)
	}

	if o.Output == "" {
		fmt.Printf("artifact: %s\n", downloadURL)
		return nil
	}
	return o.download(ctx, cfg, downloadURL)
}

// follow prints each phase transition as it is observed and returns the
// terminal snapshot.
func (o *SubmitOptions) follow(ctx context.Context, controller *studio.Controller) (v1.Snapshot, error) {
	refresh := o.PollInterval / 4
	if refresh <= 0 {
		refresh = o.PollInterval
	}
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	last := v1.PhaseIdle
	report := func(snap v1.Snapshot) {
		if snap.Phase == last {
			return
		}
		last = snap.Phase
		fmt.Printf("%s\n", snap.Phase.Label())
	}

	for {
		report(controller.CurrentState())
		select {
		case <-controller.Done():
			snap := controller.CurrentState()
			report(snap)
			return snap, nil
		case <-ticker.C:
		case <-ctx.Done():
			return v1.Snapshot{}, ctx.Err()
		}
	}
}

func (o *SubmitOptions) download(ctx context.Context, cfg *client.Config, downloadURL string) error {
	dst, err := os.Create(o.Output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", o.Output, err)
	}
	defer dst.Close()

	fetcher := artifact.NewFetcher(nil, client.Editors(cfg)...)
	if err := fetcher.Fetch(ctx, downloadURL, dst); err != nil {
		return fmt.Errorf("downloading artifact: %w", err)
	}

	fmt.Printf("saved %s\n", o.Output)
	return nil
}
