package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/isdmx/scriptbox/engine"
)

var (
	runCode    string
	runTimeout int
)

var runCmd = &cobra.Command{
	Use:   "run [script-file]",
	Short: "Evaluate one script and print the report",
	Long: `Evaluates a script file, or the code given with --code, exactly as the
execute_script tool would, and prints the rendered report. The exit status is 1
when the script did not run successfully.

Example:
  scriptbox run --code 'x := 21
x * 2'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := engine.Request{Code: runCode, TimeoutSeconds: runTimeout}
		if len(args) == 1 {
			req.FilePath = args[0]
		}

		var eng *engine.Engine
		app := fx.New(core(), fx.Populate(&eng), fx.NopLogger)
		if err := app.Err(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		resp := eng.Run(ctx, req)
		stop()

		fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
		if resp.Failed {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runCode, "code", "", "script source to evaluate instead of a file")
	runCmd.Flags().IntVarP(&runTimeout, "timeout", "t", 0, "timeout in seconds (default sandbox.timeout_sec)")
}
