package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"inboxtriage/internal/credential"
)

func authCmd() *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access and cache the token",
		Long: `Runs the OAuth consent flow for the configured account if no token is cached,
then checks the token against the Gmail profile endpoint. --reset discards the
cached token first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := loadConfig()
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := credential.NewSQLiteTokenStore(cfg.Gmail.TokenDB, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if reset {
				if err := store.Delete(ctx, cfg.Gmail.Account); err != nil {
					return fmt.Errorf("reset token: %w", err)
				}
				logger.Info("cached token removed", "account", cfg.Gmail.Account)
			}

			client, err := credential.Authorize(ctx, credential.AuthorizeConfig{
				CredentialsFile: cfg.Gmail.CredentialsFile,
				Account:         cfg.Gmail.Account,
				Scopes:          []string{gmail.GmailModifyScope},
				Store:           store,
				In:              cmd.InOrStdin(),
				Out:             cmd.ErrOrStderr(),
				Logger:          logger,
			})
			if err != nil {
				return err
			}
			srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
			if err != nil {
				return err
			}
			profile, err := srv.Users.GetProfile(cfg.Gmail.User).Context(ctx).Do()
			if err != nil {
				return fmt.Errorf("verify token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "authorized as %s (%d messages)\n", profile.EmailAddress, profile.MessagesTotal)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "discard the cached token and consent again")
	return cmd
}
