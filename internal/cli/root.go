package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ryan-RCNR/proveit-proctor/internal/integrity"
)

var rootCmd = &cobra.Command{
	Use:   "proveit-proctor",
	Short: "Time and violation enforcement core for proctored assessments",
	Long:  "Runs timed, single-attempt assessment sessions under lockdown: wall-clock deadlines, focus and fullscreen violation tracking, forced submission, and a hash-chained audit log.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := integrity.Verify(); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(78) // EX_CONFIG
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
