package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/icco/pocketseq/internal/decode"
	"github.com/icco/pocketseq/internal/midiin"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List MIDI inputs and supported sample formats",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()

		ports := midiin.InPorts()
		fmt.Fprintf(out, "MIDI inputs (%d):\n", len(ports))
		for i, name := range ports {
			fmt.Fprintf(out, "  %d: %s\n", i, name)
		}
		fmt.Fprintf(out, "Sample formats: %s\n", strings.Join(decode.Default().Extensions(), " "))
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the kit file in use",
	Long: `Print the kit file in use, or the built-in kit when --config is not given.
The output is a complete kit file and a starting point for a new one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return cfg.Write(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(configCmd)
}
