package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"casewatch/api_outliers/internal/cases"
	"casewatch/api_outliers/internal/notify"
	"casewatch/api_outliers/internal/pipeline"
	"casewatch/api_outliers/internal/render"
	"casewatch/pkg/config"
	"casewatch/pkg/logging"
)

func newScanCmd(opts *rootOptions) *cobra.Command {
	var sendNotifications bool

	cmd := &cobra.Command{
		Use:   "scan <file.csv>",
		Short: "List outlier cases in a CSV export",
		Long: "Parse a case export and list every case whose total_time exceeds the threshold.\n" +
			"Nothing is sent unless --notify is given; channels are configured through the same\n" +
			"environment variables (or .env file) as the outliers service.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLoggerWithService("casewatch")
			logger.SetOutput(cmd.ErrOrStderr())
			if opts.verbose {
				logger.SetLevel(logrus.DebugLevel)
			} else {
				logger.SetLevel(logrus.WarnLevel)
			}

			var dispatcher pipeline.Dispatcher
			if sendNotifications {
				config.LoadEnv(logger)
				d, err := notify.NewDispatcherFromConfig(cmd.Context(), notify.LoadConfig(), logger, nil)
				if err != nil {
					return fmt.Errorf("configure notifications: %w", err)
				}
				dispatcher = d
			}

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = file.Close() }()

			service := pipeline.NewService(pipeline.Config{
				Threshold:  cases.Threshold,
				Dispatcher: dispatcher,
				Logger:     logger,
			})
			outcome, err := service.Process(cmd.Context(), file)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			if opts.output != outputText {
				if err := encode(cmd.OutOrStdout(), opts.output, outcome); err != nil {
					return err
				}
			} else if err := printOutcome(cmd.OutOrStdout(), outcome, sendNotifications); err != nil {
				return err
			}

			if failed := outcome.Report.Failures(); failed > 0 {
				return fmt.Errorf("%d notification(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&sendNotifications, "notify", false, "send the email and webhook notifications")

	return cmd
}

func printOutcome(w io.Writer, outcome *pipeline.Outcome, notified bool) error {
	bold := color.New(color.Bold)
	ok := color.New(color.FgGreen)
	failed := color.New(color.FgRed)

	_, _ = bold.Fprintf(w, "%d of %d cases above %s\n\n", len(outcome.Cases), outcome.RowsScanned, render.FormatDuration(outcome.Threshold))
	if len(outcome.Cases) == 0 {
		return nil
	}

	digest, err := render.Text(outcome.Cases)
	if err != nil {
		return err
	}
	fmt.Fprint(w, digest)

	if !notified {
		fmt.Fprintln(w, "\nDry run: no notifications sent (use --notify).")
		return nil
	}

	fmt.Fprintln(w)
	if res := outcome.Report.Email; res != nil {
		if res.Success {
			_, _ = ok.Fprintf(w, "✓ email: %s\n", res.Message)
		} else {
			_, _ = failed.Fprintf(w, "✗ email: %s\n", res.Message)
		}
	}
	for _, res := range outcome.Report.Webhook {
		if res.Success {
			_, _ = ok.Fprintf(w, "✓ %s: %s\n", res.CaseID, res.Message)
		} else {
			_, _ = failed.Fprintf(w, "✗ %s: %s\n", res.CaseID, res.Message)
		}
	}
	return nil
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
