package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ryan-RCNR/proveit-proctor/internal/policy"
	"github.com/Ryan-RCNR/proveit-proctor/internal/policydiff"
)

var diffFormat string

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text", "Output format (text|json)")
}

var diffCmd = &cobra.Command{
	Use:   "diff <old-policy.yaml> <new-policy.yaml>",
	Short: "Compare two policy files",
	Long:  "Loads two policy files and shows which enforcement settings changed,\nannotating each change as stricter or looser for candidates.",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	oldPol, err := policy.Load(args[0])
	if err != nil {
		return fmt.Errorf("load %s: %w", args[0], err)
	}
	newPol, err := policy.Load(args[1])
	if err != nil {
		return fmt.Errorf("load %s: %w", args[1], err)
	}

	r := policydiff.Diff(oldPol, newPol)
	r.OldPath = args[0]
	r.NewPath = args[1]

	switch diffFormat {
	case "json":
		out, err := policydiff.FormatJSON(r)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(policydiff.FormatText(r))
	}

	return nil
}
