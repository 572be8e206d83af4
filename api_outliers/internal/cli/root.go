package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

type rootOptions struct {
	output  string
	verbose bool
}

// NewRootCmd returns the root command for the casewatch CLI
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "casewatch",
		Short:         "Flag support cases that exceed the handling-time threshold",
		Long:          "casewatch reads a case export (CSV), lists the cases above the total time threshold and optionally notifies the configured email and webhook channels.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case outputText, outputJSON, outputYAML:
				return nil
			default:
				return fmt.Errorf("unsupported output format %q (want text, json or yaml)", opts.output)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format: text|json|yaml")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(newScanCmd(opts))
	rootCmd.AddCommand(newVersionCmd(opts))

	return rootCmd
}
