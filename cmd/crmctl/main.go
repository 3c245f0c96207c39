// Command crmctl runs one-off maintenance tasks against the listings store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/observability"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var deps *shared.Deps

	root := &cobra.Command{
		Use:          "crmctl",
		Short:        "Maintenance tasks for the listings CRM",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := shared.Load()
			log.Logger = observability.NewLogger(cfg.AppEnv)
			if missing := cfg.Missing("SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY"); len(missing) > 0 {
				return &missingConfigError{keys: missing}
			}
			var err error
			deps, err = shared.Open(cmd.Context(), cfg)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if deps != nil {
				deps.Close()
			}
		},
	}

	get := func() *shared.Deps { return deps }
	root.AddCommand(
		renderCmd(get),
		reconcileCmd(get),
		publishCheckCmd(get),
		resetOwnerCmd(get),
		syncStatusesCmd(get),
	)
	return root
}
