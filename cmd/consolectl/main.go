// Command consolectl drives the console session from scripts and terminals
// without the local agent.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/comanda/restaurant-console/internal/core/ports"
	"github.com/comanda/restaurant-console/internal/core/service"
	"github.com/comanda/restaurant-console/internal/infrastructure/authapi"
	"github.com/comanda/restaurant-console/internal/infrastructure/db"
	"github.com/comanda/restaurant-console/internal/pkg/config"
	"github.com/comanda/restaurant-console/pkg/logger"
)

func main() {
	if err := newRootCommand(openSession).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// session is an opened manager plus the resources backing it.
type session struct {
	manager *service.SessionManager
	close   func()
}

type openFunc func(ctx context.Context, verbose bool) (*session, error)

// openSession builds a manager from the environment and restores the stored
// session, if any.
func openSession(ctx context.Context, verbose bool) (*session, error) {
	cfg, err := config.LoadContext(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logger.Init(logger.Options{Level: level, Pretty: true, Service: "consolectl"})

	store, closeStore, err := db.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	client := authapi.New(cfg.API.BaseURL, authapi.NewHTTPClient(cfg.API.Timeout), log)
	return newSession(ctx, client, store, log, closeStore)
}

func newSession(ctx context.Context, client ports.AuthClient, store ports.CredentialStore, log zerolog.Logger, closeStore func()) (*session, error) {
	m := service.NewSessionManager(client, store, log)
	if err := m.Hydrate(ctx); err != nil {
		m.Close()
		closeStore()
		return nil, err
	}
	return &session{
		manager: m,
		close: func() {
			m.Close()
			closeStore()
		},
	}, nil
}

func newRootCommand(open openFunc) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:           "consolectl",
		Short:         "Manage the restaurant console session",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log session activity to stderr")

	withSession := func(run func(cmd *cobra.Command, s *session) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			s, err := open(ctx, verbose)
			if err != nil {
				return err
			}
			defer s.close()
			return run(cmd, s)
		}
	}

	cmd.AddCommand(newLoginCommand(withSession))
	cmd.AddCommand(newLogoutCommand(withSession))
	cmd.AddCommand(newWhoamiCommand(withSession))
	cmd.AddCommand(newRefreshCommand(withSession))
	cmd.AddCommand(newStatusCommand(withSession))
	return cmd
}
