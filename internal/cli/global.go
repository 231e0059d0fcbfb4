package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mixdeskhq/mixdesk/internal/studio/config"
)

type GlobalOptions struct {
	ConsoleUrl string
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		ConsoleUrl: "http://" + config.DefaultListenAddress,
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConsoleUrl, "console-url", "u", o.ConsoleUrl, "Address of the studio console")
}

func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	if _, err := url.Parse(o.ConsoleUrl); err != nil {
		return fmt.Errorf("invalid console url: %w", err)
	}
	return nil
}
