package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var flowInput string

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List or run the AI flows",
}

var flowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered flows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newModelClient(cmd.Context(), cfg, nil, logger)
		if err != nil {
			return err
		}
		for _, name := range newFlowRegistry(client, cfg, nil, logger).Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var flowsRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run one flow and print its JSON output",
	Long: `Runs a flow with a JSON input and prints the JSON output.

The input is given inline, read from a file with a leading @, or read from
standard input with "-".

Example:
  kairo flows run explainConcept --input '{"concept":"Grace","language":"en"}'
  kairo flows run generateMeditationAudio --input @topic.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(flowInput, cmd.InOrStdin())
		if err != nil {
			return err
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newModelClient(cmd.Context(), cfg, nil, logger)
		if err != nil {
			return err
		}

		out, err := newFlowRegistry(client, cfg, nil, logger).Run(cmd.Context(), args[0], raw)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	flowsRunCmd.Flags().StringVarP(&flowInput, "input", "i", "{}", "JSON input, @file or - for stdin")
}

// readInput resolves the --input value into raw JSON
func readInput(value string, stdin io.Reader) (json.RawMessage, error) {
	var data []byte
	var err error
	switch {
	case value == "-":
		data, err = io.ReadAll(stdin)
	case strings.HasPrefix(value, "@"):
		data, err = os.ReadFile(strings.TrimPrefix(value, "@"))
	default:
		data = []byte(value)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("input is not valid JSON")
	}
	return data, nil
}
