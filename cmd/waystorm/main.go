// Package main is the entry point for the waystorm input server.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/dshills/waystorm/internal/app"
	"github.com/dshills/waystorm/internal/config"
	"github.com/dshills/waystorm/internal/input/connection/linuxinput"
	"github.com/dshills/waystorm/internal/power"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts app.Options

	root := &cobra.Command{
		Use:          "waystorm",
		Short:        "Compositor input pipeline",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath(), "path to configuration file")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.Backend, "backend", "", "input backend (native, terminal, nested, remote)")
	root.Flags().BoolVar(&opts.Watch, "watch", true, "reload the configuration file when it changes")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the input server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	runCmd.Flags().BoolVar(&opts.Watch, "watch", true, "reload the configuration file when it changes")

	root.AddCommand(runCmd, newDevicesCmd(&opts), newVersionCmd())
	return root
}

func run(ctx context.Context, opts app.Options) error {
	opts.Signals = true

	application, err := app.New(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	return application.Run(ctx)
}

func newDevicesCmd(opts *app.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List input and backlight devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}

			devices, err := linuxinput.ListDevices(cfg.Input.Dir)
			if err != nil {
				return fmt.Errorf("listing input devices: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tNAME\tCAPABILITIES\tMT\tSTATUS")
			for _, d := range devices {
				status := "ok"
				if d.Err != nil {
					status = d.Err.Error()
				}
				fmt.Fprintf(w, "%s\t%s\t%v\t%t\t%s\n", d.Path, d.Name, d.Capabilities, d.Multitouch, status)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			dir := cfg.Power.SysfsDir
			if dir == "" {
				dir = power.SysfsBacklightDir
			}
			backlights, err := power.Devices(osfs.New(dir))
			if err != nil {
				return fmt.Errorf("listing backlights: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "BACKLIGHT")
			for _, name := range backlights {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "waystorm %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", date)
		},
	}
}
