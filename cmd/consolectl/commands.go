package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/comanda/restaurant-console/internal/core/domain"
	"github.com/comanda/restaurant-console/internal/core/service"
)

const passwordEnv = "CONSOLE_PASSWORD"

type sessionRunner func(run func(cmd *cobra.Command, s *session) error) func(*cobra.Command, []string) error

type statusOutput struct {
	State           domain.State `json:"state"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	Error           string       `json:"error,omitempty"`
	User            *domain.User `json:"user,omitempty"`
	TokenExpiresAt  *time.Time   `json:"tokenExpiresAt,omitempty"`
}

func newLoginCommand(with sessionRunner) *cobra.Command {
	var (
		email    string
		password string
		remember bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: with(func(cmd *cobra.Command, s *session) error {
			if password == "" {
				password = os.Getenv(passwordEnv)
			}
			err := s.manager.Login(cmd.Context(), domain.Credentials{
				Email:    email,
				Password: password,
				Remember: remember,
			})
			if err != nil {
				if msg := s.manager.Snapshot().Error; msg != "" {
					return errors.New(msg)
				}
				return err
			}
			user := s.manager.Snapshot().User
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", user.Email, user.RoleName())
			return nil
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (defaults to $"+passwordEnv+")")
	cmd.Flags().BoolVar(&remember, "remember", true, "Keep the session across restarts")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCommand(with sessionRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget stored credentials",
		RunE: with(func(cmd *cobra.Command, s *session) error {
			s.manager.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		}),
	}
}

func newWhoamiCommand(with sessionRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Validate the stored session and print the signed-in user",
		RunE: with(func(cmd *cobra.Command, s *session) error {
			s.manager.CheckAuth(cmd.Context())
			snap := s.manager.Snapshot()
			if !snap.IsAuthenticated {
				return domain.ErrNotAuthenticated
			}
			return writeJSON(cmd, snap.User)
		}),
	}
}

func newRefreshCommand(with sessionRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token",
		RunE: with(func(cmd *cobra.Command, s *session) error {
			if !s.manager.RefreshAccessToken(cmd.Context()) {
				return errors.New("refresh failed, sign in again")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "access token refreshed")
			return nil
		}),
	}
}

func newStatusCommand(with sessionRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the stored session without contacting the server",
		RunE: with(func(cmd *cobra.Command, s *session) error {
			snap := s.manager.Snapshot()
			out := statusOutput{
				State:           snap.State,
				IsAuthenticated: snap.IsAuthenticated,
				Error:           snap.Error,
				User:            snap.User,
			}
			if exp, ok := service.TokenExpiry(snap.AccessToken); ok {
				out.TokenExpiresAt = &exp
			}
			return writeJSON(cmd, out)
		}),
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
