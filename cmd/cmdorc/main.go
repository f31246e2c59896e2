// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// cmdorc is an example CLI around the orchestrator library: load a TOML
// config, fire triggers, and optionally watch files.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/eyecantell/cmdorc/internal/log"
	"github.com/eyecantell/cmdorc/pkg/config"
	"github.com/eyecantell/cmdorc/pkg/orchestrator"
	"github.com/eyecantell/cmdorc/pkg/orchestrator/store"
	"github.com/eyecantell/cmdorc/pkg/watch"
)

// Version information (injected via ldflags at build time)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	storePath  string
}

func (f *rootFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.configPath, "config", "c", "cmdorc.toml", "path to the TOML config file")
	flags.StringVar(&f.storePath, "store", "", "sqlite file to archive finalized runs into")
}

// buildRuntime loads the config and wires the runtime plus its executor.
func (f *rootFlags) buildRuntime() (*orchestrator.Runtime, func(), error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, err
	}

	var execOpts []orchestrator.LocalOption
	closeStore := func() {}
	if f.storePath != "" {
		s, err := store.NewSQLiteStore(store.Config{Path: f.storePath})
		if err != nil {
			return nil, nil, err
		}
		execOpts = append(execOpts, orchestrator.WithStore(s))
		closeStore = func() { s.Close() }
	}

	rt, err := orchestrator.New(*cfg,
		orchestrator.WithExecutor(orchestrator.NewLocalExecutor(execOpts...)))
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return rt, closeStore, nil
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "cmdorc",
		Short:         "Orchestrate shell commands as an event-driven workflow",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.register(root.PersistentFlags())

	root.AddCommand(newRunCommand(flags))
	root.AddCommand(newWatchCommand(flags))
	root.AddCommand(newValidateCommand(flags))
	root.AddCommand(newListCommand(flags))
	return root
}

func newRunCommand(flags *rootFlags) *cobra.Command {
	var drainTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "run TRIGGER",
		Short: "Fire a trigger and wait for the resulting runs to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, closeStore, err := flags.buildRuntime()
			if err != nil {
				return err
			}
			defer closeStore()
			defer rt.Shutdown(10*time.Second, true)

			if err := rt.Trigger(args[0]); err != nil {
				return err
			}
			waitForIdle(rt, drainTimeout)
			printStatuses(cmd, rt)
			return nil
		},
	}
	cmd.Flags().DurationVar(&drainTimeout, "timeout", 5*time.Minute, "max time to wait for runs to drain")
	return cmd
}

func newWatchCommand(flags *rootFlags) *cobra.Command {
	var (
		trigger   string
		include   []string
		exclude   []string
		debounce  time.Duration
		recursive bool
	)
	cmd := &cobra.Command{
		Use:   "watch PATH",
		Short: "Fire a trigger whenever files under PATH change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, closeStore, err := flags.buildRuntime()
			if err != nil {
				return err
			}
			defer closeStore()
			defer rt.Shutdown(10*time.Second, true)

			w, err := watch.New(watch.Config{
				Path:      args[0],
				Recursive: recursive,
				Include:   include,
				Exclude:   exclude,
				Trigger:   trigger,
				Debounce:  debounce,
			}, rt)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := w.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (trigger %q). Ctrl-C to stop.\n", args[0], trigger)
			<-ctx.Done()
			return w.Stop()
		},
	}
	cmd.Flags().StringVar(&trigger, "trigger", "file_changed", "trigger to fire on changes")
	cmd.Flags().StringSliceVar(&include, "include", nil, "glob patterns of files to include")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "glob patterns of files to exclude")
	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "per-file debounce window")
	cmd.Flags().BoolVar(&recursive, "recursive", true, "watch subdirectories")
	return cmd
}

func newValidateCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file and its command templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, closeStore, err := flags.buildRuntime()
			if err != nil {
				return err
			}
			defer closeStore()
			defer rt.Shutdown(time.Second, false)

			problems := rt.ValidateTemplates()
			if len(problems) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Config OK")
				return nil
			}
			for name, errs := range problems {
				for _, e := range errs {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, e)
				}
			}
			return fmt.Errorf("%d command template(s) failed to resolve", len(problems))
		},
	}
}

func newListCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured commands and their triggers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			for _, c := range cfg.Commands {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\ttriggers=%v\n", c.Name, c.Command, c.Triggers)
			}
			return nil
		},
	}
}

// waitForIdle polls until no run is active or the timeout expires.
func waitForIdle(rt *orchestrator.Runtime, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(rt.GetAllActiveHandles()) == 0 {
			// Lifecycle events may start follow-up commands; settle briefly.
			time.Sleep(50 * time.Millisecond)
			if len(rt.GetAllActiveHandles()) == 0 {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// printStatuses prints a one-line summary per command.
func printStatuses(cmd *cobra.Command, rt *orchestrator.Runtime) {
	for _, name := range rt.ListCommands() {
		status, err := rt.GetStatus(name)
		if err != nil {
			continue
		}
		line := fmt.Sprintf("%s\t%s", name, status.State)
		if status.LastRun != nil {
			line += "\t" + status.LastRun.DurationString()
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
}
