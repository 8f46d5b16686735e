package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "scriptbox",
	Short: "Go script execution server with NuGet package references",
	Long: `scriptbox evaluates Go scripts in a sandboxed interpreter.

Scripts may reference packages with lines of the form
  #r "nuget: PackageName, Version"
which are resolved, with their dependencies, before the script runs.

Run without a subcommand to start the MCP server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./config.yaml)")
	rootCmd.AddCommand(serveCmd, runCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
