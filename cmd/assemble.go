package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens-cli/internal/evidence"
	"github.com/KaramelBytes/datalens-cli/internal/profile"
)

var (
	asmProfile string
	asmBlocks  string
	asmIntent  string
	asmMetric  string
	asmFormat  string
	asmOutput  string
)

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Build Evidence from a profile document and previously computed blocks",
	Long: `Validates --profile against the column schema, decodes --blocks (a JSON array of insight blocks)
and projects them into Evidence. Intent and primary metric are detected from the profile unless
given with --intent and --metric.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if asmProfile == "" || asmBlocks == "" {
			return fmt.Errorf("--profile and --blocks are required")
		}
		format, err := normalizeFormat(asmFormat)
		if err != nil {
			return err
		}
		if asmOutput != "" && !cmd.Flags().Changed("format") {
			format = formatFromPath(asmOutput, format)
		}
		pb, err := os.ReadFile(asmProfile)
		if err != nil {
			return fmt.Errorf("read profile: %w", err)
		}
		prof, err := profile.ParseProfileJSON(pb)
		if err != nil {
			return err
		}
		bb, err := os.ReadFile(asmBlocks)
		if err != nil {
			return fmt.Errorf("read blocks: %w", err)
		}
		blocks, err := evidence.DecodeBlocks(bb)
		if err != nil {
			return err
		}

		intent := evidence.DetectDatasetIntent(prof)
		if asmIntent != "" {
			intent, err = parseIntent(asmIntent)
			if err != nil {
				return err
			}
		}
		metric := evidence.SelectPrimaryMetric(prof, intent, nil)
		if cmd.Flags().Changed("metric") {
			metric = evidence.Metric{Column: asmMetric}
		}
		ev := evidence.AssembleEvidence(evidence.AssembleInput{
			Profile:       prof,
			Intent:        intent,
			PrimaryMetric: metric,
			Blocks:        blocks,
		})
		return emit(cmd.OutOrStdout(), &ev, format, asmOutput)
	},
}

func parseIntent(s string) (evidence.Intent, error) {
	in := evidence.Intent(strings.ToLower(strings.TrimSpace(s)))
	if in == evidence.IntentGeneric {
		return in, nil
	}
	for _, known := range evidence.Intents {
		if in == known {
			return in, nil
		}
	}
	return "", fmt.Errorf("unknown --intent: %s (use sales|financial|opportunity|operations|generic)", s)
}

func init() {
	rootCmd.AddCommand(assembleCmd)
	assembleCmd.Flags().StringVar(&asmProfile, "profile", "", "profile JSON document (required)")
	assembleCmd.Flags().StringVar(&asmBlocks, "blocks", "", "JSON array of insight blocks (required)")
	assembleCmd.Flags().StringVar(&asmIntent, "intent", "", "dataset intent (detected from the profile if omitted)")
	assembleCmd.Flags().StringVar(&asmMetric, "metric", "", "primary metric column; pass an empty value for row count (selected from the profile if omitted)")
	assembleCmd.Flags().StringVarP(&asmFormat, "format", "f", formatJSON, "output format: json|yaml|markdown")
	assembleCmd.Flags().StringVarP(&asmOutput, "output", "o", "", "optional path to write Evidence")
}
