package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ryan-RCNR/proveit-proctor/internal/sim"
)

var (
	simTrace  string
	simPolicy string
	simFormat string
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simTrace, "trace", "", "Path to audit log (required)")
	simulateCmd.Flags().StringVar(&simPolicy, "policy", "", "Path to new policy YAML (required)")
	simulateCmd.Flags().StringVarP(&simFormat, "format", "f", "text", "Output format (text|json)")
	simulateCmd.MarkFlagRequired("trace")
	simulateCmd.MarkFlagRequired("policy")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay audit log against a new policy and show decision diffs",
	Long: "Reads a recorded audit log, replays every host event through the\n" +
		"violation monitor under an alternate policy file, and shows which\n" +
		"decisions changed.\n\n" +
		"Use this to preview enforcement changes before deploying them.",
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	result, err := sim.Simulate(simTrace, simPolicy)
	if err != nil {
		return err
	}

	switch simFormat {
	case "json":
		out, err := sim.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(sim.FormatText(result))
	}

	return nil
}
