package main

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"verityengine/pkg/verity"
)

var watchCmd = &cobra.Command{
	Use:   "watch <ir-file>",
	Short: "Re-run a campaign every time its IR document changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		irPath, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer watcher.Close()

		if err := watcher.Add(filepath.Dir(irPath)); err != nil {
			return fmt.Errorf("watch %s: %w", filepath.Dir(irPath), err)
		}

		fmt.Printf("watching %s for changes (ctrl+c to stop)\n", irPath)
		if err := runOnce(irPath); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "run failed: %v\n", err)
		}

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) != irPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				fmt.Printf("\n%s changed, recompiling...\n", irPath)
				if err := runOnce(irPath); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "run failed: %v\n", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
			}
		}
	},
}

func runOnce(irPath string) error {
	mgr := verity.NewManager()
	id, mem, store, err := compileAndRegister(mgr, irPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := mgr.PhaseTransition(id, verity.PhaseDutLoaded); err != nil {
		return err
	}
	if err := mgr.PhaseTransition(id, verity.PhaseRunning); err != nil {
		return err
	}
	if err := recordFindingsToMemory(mgr, id, mem, store); err != nil {
		fmt.Printf("warning: failed to persist cross-campaign memory: %v\n", err)
	}
	return printSummary(mgr, id)
}
