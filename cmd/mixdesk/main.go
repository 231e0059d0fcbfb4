package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mixdeskhq/mixdesk/internal/cli"
)

func main() {
	command := NewMixdeskCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewMixdeskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mixdesk [flags] [options]",
		Short: "mixdesk drives prompt-based audio mashups through the composer service.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(cli.NewCmdRun())
	cmd.AddCommand(cli.NewCmdSubmit())
	cmd.AddCommand(cli.NewCmdStatus())
	cmd.AddCommand(cli.NewCmdVersion())

	return cmd
}
