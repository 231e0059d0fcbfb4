package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"

	"github.com/mixdeskhq/mixdesk/internal/studio"
)

const (
	tableFormat = "table"
	jsonFormat  = "json"
)

var (
	legalOutputTypes = []string{tableFormat, jsonFormat}
)

type StatusOptions struct {
	GlobalOptions

	Output string
}

func DefaultStatusOptions() *StatusOptions {
	return &StatusOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdStatus() *cobra.Command {
	o := DefaultStatusOptions()
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Display the state of a running studio console.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
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

func (o *StatusOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *StatusOptions) Complete(cmd *cobra.Command, args []string) error {
	return o.GlobalOptions.Complete(cmd, args)
}

func (o *StatusOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}

	if len(o.Output) > 0 && !funk.Contains(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}

	return nil
}

func (o *StatusOptions) Run(ctx context.Context, args []string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.ConsoleUrl+"/api/v1/status", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("querying console: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("querying console: %d", resp.StatusCode)
	}

	reply := studio.StatusReply{}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("decoding status: %w", err)
	}

	switch o.Output {
	case jsonFormat:
		marshalled, err := json.Marshal(reply)
		if err != nil {
			return fmt.Errorf("marshalling status: %w", err)
		}
		fmt.Printf("%s\n", string(marshalled))
		return nil
	default:
		return printStatusTable(reply)
	}
}

func printStatusTable(reply studio.StatusReply) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
	fmt.Fprintln(w, "JOB\tPHASE\tACTIVE\tCONNECTED")
	fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", orNone(reply.JobID), reply.Phase, reply.Active, reply.Connected)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "STEP\tSTATE")
	for _, step := range reply.Steps {
		fmt.Fprintf(w, "%s\t%s\n", step.Label, step.State)
	}
	w.Flush()

	if reply.ArtifactURL != "" {
		fmt.Printf("\nartifact: %s\n", reply.ArtifactURL)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}
