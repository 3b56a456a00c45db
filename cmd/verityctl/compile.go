package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"verityengine/pkg/verity"
)

var compileCmd = &cobra.Command{
	Use:   "compile <ir-file>",
	Short: "Compile an IR document into a new campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		mgr := verity.NewManager()
		id, errs, err := mgr.Compile(body, verity.CompileOptions{
			Executor: verity.NewModelOnlyExecutor(),
		})
		if err != nil {
			return err
		}
		if len(errs) > 0 {
			fmt.Fprintln(os.Stderr, "validation failed:")
			for _, e := range errs {
				fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Kind, e.Message)
			}
			os.Exit(1)
		}

		fmt.Println(id)
		return nil
	},
}
