package main

import (
	"github.com/aretw0/lattice/internal/cli"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <settings>",
	Short: "Print the event sequence without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := planOptions(cmd, args)
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		opts.Mermaid, _ = cmd.Flags().GetBool("mermaid")
		return cli.Plan(cmd.Context(), opts)
	},
}

var countCmd = &cobra.Command{
	Use:   "count <settings>",
	Short: "Print the dimensions and event count of an acquisition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Count(planOptions(cmd, args))
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <settings>",
	Short: "Check a settings file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Validate(planOptions(cmd, args))
	},
}

func planOptions(cmd *cobra.Command, args []string) cli.PlanOptions {
	configPath, _ := cmd.Flags().GetString("config")
	jsonMode, _ := cmd.Flags().GetBool("json")
	return cli.PlanOptions{
		SettingsPath: args[0],
		ConfigPath:   configPath,
		JSON:         jsonMode,
		Stdout:       cmd.OutOrStdout(),
	}
}

func init() {
	rootCmd.AddCommand(planCmd, countCmd, validateCmd)

	planCmd.Flags().Int("limit", 0, "Print at most this many events (0 prints all)")
	planCmd.Flags().Bool("json", false, "Print the events as JSON")
	planCmd.Flags().Bool("mermaid", false, "Print the loop nest as a Mermaid flowchart")
	countCmd.Flags().Bool("json", false, "Print the summary as JSON")
}
