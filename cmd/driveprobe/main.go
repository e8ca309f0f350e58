// Driveprobe is an interactive reverse-engineering tool for the ARM
// controller inside an optical disc drive, reached through a vendor
// backdoor tunneled over SCSI.
//
// It can read and write target memory, reposition the drive's movable
// RAM overlay to fake writes into flash, inject and run compiled code
// fragments, install live patch hooks into executing firmware, and
// watch memory regions for change.
//
// Usage:
//
//	driveprobe [command] [flags]
//
// All addresses and values are hexadecimal. See 'driveprobe --help' for
// available commands; pass --sim to work against the built-in simulated
// drive instead of real hardware.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/driveprobe/internal/logging"
	"github.com/muurk/driveprobe/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "driveprobe",
	Short: "Optical drive backdoor probe",
	Long: `An interactive reverse-engineering tool for the ARM controller inside
an optical disc drive, reached through a vendor SCSI backdoor.

Reads and writes controller memory, moves the RAM overlay over flash,
injects compiled code, installs live patch hooks, and watches memory
for changes. All numeric arguments are hexadecimal.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("driveprobe %s\n", version.Full())
	},
}
