package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fieldnav-navigator:", err)
		os.Exit(1)
	}
}

// globalFlags override the loaded configuration when set.
type globalFlags struct {
	registry string
	agent    string
	router   string
	logLevel string
	logJSON  bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "fieldnav-navigator",
		Short:         "Terminal navigation client for the fieldnav customer registry",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.registry, "registry", "", "registry base URL (overrides navigator.registry_url)")
	pf.StringVar(&flags.agent, "agent", "", "agent whose positions are followed (overrides navigator.agent_id)")
	pf.StringVar(&flags.router, "router", "", "routing provider: osrm or straightline (overrides routing.provider)")
	pf.StringVar(&flags.logLevel, "log-level", "warn", "log level written to stderr")
	pf.BoolVar(&flags.logJSON, "log-json", false, "write logs as JSON instead of text")

	root.AddCommand(newCustomersCmd(flags))
	root.AddCommand(newRouteCmd(flags))
	root.AddCommand(newTrackCmd(flags))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "fieldnav-navigator %s\n", version)
			return err
		},
	}
}
