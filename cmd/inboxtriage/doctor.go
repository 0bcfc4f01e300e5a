package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/api/gmail/v1"
	_ "modernc.org/sqlite"

	"inboxtriage/internal/config"
	"inboxtriage/internal/credential"
	"inboxtriage/internal/provider"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your inboxtriage setup",
		Long: `Verifies that the configuration, Gmail credentials, token cache and LLM
providers are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("inboxtriage doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printWarn("Config file", fmt.Sprintf("not found at %s, using defaults", cfgPath))
				warned++
			} else {
				printPass("Config file", cfgPath)
				passed++
			}

			// 2. Config loads and validates
			cfg, _, err := config.LoadOrDefaults(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Config validation", "valid")
			passed++

			if cfg.Triage.SendMode == config.SendModeLive {
				printWarn("Send mode", "live: replies will be sent and messages marked read")
				warned++
			} else {
				printPass("Send mode", cfg.Triage.SendMode)
				passed++
			}

			// 3. OAuth client secret parses
			if cfg.Gmail.CredentialsFile == "" {
				printFail("Gmail credentials", "gmail.credentialsFile not set")
				failed++
			} else if _, err := credential.OAuthConfigFromFile(cfg.Gmail.CredentialsFile, gmail.GmailModifyScope); err != nil {
				printFail("Gmail credentials", err.Error())
				failed++
			} else {
				printPass("Gmail credentials", cfg.Gmail.CredentialsFile)
				passed++
			}

			// 4. Token database writable, token present
			if err := checkDatabase(cfg.Gmail.TokenDB); err != nil {
				printFail("Token database", err.Error())
				failed++
			} else {
				printPass("Token database", cfg.Gmail.TokenDB)
				passed++
				switch err := checkToken(cfg); {
				case errors.Is(err, credential.ErrNoToken):
					printWarn("Gmail token", "none cached, run 'inboxtriage auth'")
					warned++
				case err != nil:
					printFail("Gmail token", err.Error())
					failed++
				default:
					printPass("Gmail token", "cached for "+cfg.Gmail.Account)
					passed++
				}
			}

			// 5. Check providers
			providerCount := 0
			for name, p := range cfg.Providers {
				if !p.Enabled {
					continue
				}
				providerCount++
				if p.APIKey == "" && p.APIBase == "" {
					printWarn("Provider: "+name, "enabled but no API key/base configured")
					warned++
				} else {
					printPass("Provider: "+name, "configured")
					passed++
				}
			}
			if providerCount == 0 {
				printFail("Providers", "no providers enabled")
				failed++
			}

			// 6. Prompt overrides
			if cfg.Triage.PromptsFile != "" {
				if _, err := os.Stat(cfg.Triage.PromptsFile); err != nil {
					printFail("Prompts file", err.Error())
					failed++
				} else {
					printPass("Prompts file", cfg.Triage.PromptsFile)
					passed++
				}
			}

			// 7. Check log file writable
			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running inboxtriage.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\ninboxtriage should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! inboxtriage is ready to run.\n")
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show config, send mode, provider and token state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, found, err := config.LoadOrDefaults(cfgPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "inboxtriage v%s\n", version)
			if found {
				fmt.Fprintf(out, "Config:    %s\n", cfgPath)
			} else {
				fmt.Fprintf(out, "Config:    %s (not found, defaults)\n", cfgPath)
			}
			fmt.Fprintf(out, "Send mode: %s\n", cfg.Triage.SendMode)
			fmt.Fprintf(out, "Query:     %s (max %d)\n", cfg.Gmail.Query, cfg.Gmail.MaxResults)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if p := provider.NewFactory(cfg, logger).HealthyProvider(ctx); p != nil {
				fmt.Fprintf(out, "Provider:  %s (healthy)\n", p.Name())
			} else {
				fmt.Fprintf(out, "Provider:  none healthy\n")
			}

			switch err := checkToken(cfg); {
			case err == nil:
				fmt.Fprintf(out, "Token:     cached for %s\n", cfg.Gmail.Account)
			case errors.Is(err, credential.ErrNoToken):
				fmt.Fprintf(out, "Token:     none (run 'inboxtriage auth')\n")
			default:
				fmt.Fprintf(out, "Token:     error: %v\n", err)
			}
			return nil
		},
	}
}

// checkToken reports whether the token store holds a token for the account.
func checkToken(cfg *config.Config) error {
	store, err := credential.NewSQLiteTokenStore(cfg.Gmail.TokenDB, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = store.Load(ctx, cfg.Gmail.Account)
	return err
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
