package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ryan-RCNR/proveit-proctor/internal/systemd"
)

func init() {
	rootCmd.AddCommand(systemdCmd)
	systemdCmd.AddCommand(systemdUnitCmd)
	systemdCmd.AddCommand(systemdRecordCmd)
}

var systemdCmd = &cobra.Command{
	Use:   "systemd",
	Short: "systemd install helpers",
	Long:  "Commands for installing the gateway as a systemd service and\nbaselining the unit file for tamper detection.",
}

var systemdUnitCmd = &cobra.Command{
	Use:   "unit",
	Short: "Print the gateway service unit",
	Long:  "Prints the hardened systemd unit for the gateway.\nWrite it to /etc/systemd/system/proveit-proctor.service, then run\n'proveit-proctor systemd record' to baseline it.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(systemd.GatewayUnit())
	},
}

var systemdRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Baseline the installed unit file hash",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := systemd.RecordUnitFileHash(); err != nil {
			return err
		}
		fmt.Printf("Recorded unit file hash at %s\n", systemd.UnitHashPath)
		return nil
	},
}
