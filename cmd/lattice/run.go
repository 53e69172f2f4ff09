package main

import (
	"github.com/aretw0/lattice/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <settings>",
	Short: "Run an acquisition on the simulated hardware",
	Long: `Runs the acquisition described by the settings file and prints each event as
it executes. Ctrl+C aborts the acquisition; the hooks still restore focus,
shutter and channel state before the command returns.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")
		jsonMode, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")
		runID, _ := cmd.Flags().GetString("run-id")

		_, err := cli.Execute(cmd.Context(), cli.RunOptions{
			SettingsPath: args[0],
			ConfigPath:   configPath,
			RunID:        runID,
			JSON:         jsonMode,
			Quiet:        quiet,
			Debug:        debug,
			Stdout:       cmd.OutOrStdout(),
		})
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("json", false, "Print progress as JSON lines")
	runCmd.Flags().BoolP("quiet", "q", false, "Only print the final summary")
	runCmd.Flags().String("run-id", "", "Identifier of the run (random by default)")
}
