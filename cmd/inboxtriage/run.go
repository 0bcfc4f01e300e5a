package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"inboxtriage/internal/config"
	"inboxtriage/internal/credential"
	"inboxtriage/internal/mail"
	"inboxtriage/internal/metrics"
	"inboxtriage/internal/provider"
	"inboxtriage/internal/triage"
)

func runCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Triage the unread batch once and print the report",
		Long: `Lists unread messages, classifies each one and drafts replies for Urgent and
Follow-up mail. In report-only mode (the default) nothing is sent and nothing is
marked read. In live mode drafted replies are sent and the message marked read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := loadConfig()
			if err != nil {
				return err
			}
			defer closer.Close()

			if mode == "" {
				mode = cfg.Triage.SendMode
			}
			sendMode, err := triage.ParseSendMode(mode)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			classifier, responder, err := buildStages(cfg)
			if err != nil {
				return err
			}
			gateway, cleanup, err := buildGateway(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			pipeline := triage.NewPipeline(triage.PipelineConfig{
				Gateway:    gateway,
				Extractor:  triage.NewExtractor(cfg.Triage.RecursiveParts, logger),
				Classifier: classifier,
				Responder:  responder,
				Mode:       sendMode,
				Logger:     logger,
			})

			report, runErr := pipeline.Run(ctx)
			if report != nil {
				if err := report.WriteText(cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			if err := dumpMetrics(cfg.Metrics); err != nil {
				logger.Warn("cannot write metrics", "err", err)
			}
			if errors.Is(runErr, context.Canceled) {
				logger.Warn("run interrupted, report is partial")
				return nil
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "send mode: report-only or live (default: triage.sendMode)")
	return cmd
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [file]",
		Short: "Classify one email body from a file or stdin and show the draft",
		Long:  "Runs the classifier and responder on a plain-text body without touching Gmail. Reads stdin when no file is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := loadConfig()
			if err != nil {
				return err
			}
			defer closer.Close()

			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			data, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			body := string(data)
			if strings.TrimSpace(body) == "" {
				return fmt.Errorf("empty body")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			classifier, responder, err := buildStages(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			c := classifier.Classify(ctx, body)
			if c.Failed() {
				fmt.Fprintf(out, "classification: %s (failed: %v)\n", c.Label, c.Err)
			} else {
				fmt.Fprintf(out, "classification: %s\n", c.Label)
			}

			if !c.Label.Draftable() {
				fmt.Fprintln(out, "no response needed")
				return nil
			}
			d := responder.Draft(ctx, body, string(c.Label))
			switch d.Status {
			case triage.DraftProduced:
				fmt.Fprintf(out, "draft:\n%s\n", d.Text)
			case triage.DraftFailed:
				fmt.Fprintf(out, "draft failed: %v\n", d.Err)
			}
			return nil
		},
	}
}

// buildStages wires the classifier and responder to the configured provider
// chain.
func buildStages(cfg *config.Config) (*triage.Classifier, *triage.Responder, error) {
	prompts := triage.DefaultPrompts()
	if cfg.Triage.PromptsFile != "" {
		p, err := triage.LoadPrompts(cfg.Triage.PromptsFile)
		if err != nil {
			return nil, nil, err
		}
		prompts = p
	}

	prov, err := provider.NewFactory(cfg, logger).Chain()
	if err != nil {
		return nil, nil, fmt.Errorf("provider: %w", err)
	}
	logger.Debug("using provider", "provider", prov.Name())
	completer := provider.NewCompleter(prov, logger)

	classifier := triage.NewClassifier(triage.ClassifierConfig{
		Completer:   completer,
		Prompts:     prompts,
		BodyLimit:   cfg.Triage.BodyLimit,
		MaxTokens:   cfg.Triage.Classify.MaxTokens,
		Temperature: cfg.Triage.Classify.Temperature,
		Logger:      logger,
	})
	responder := triage.NewResponder(triage.ResponderConfig{
		Completer:   completer,
		Prompts:     prompts,
		BodyLimit:   cfg.Triage.BodyLimit,
		MaxTokens:   cfg.Triage.Draft.MaxTokens,
		Temperature: cfg.Triage.Draft.Temperature,
		Logger:      logger,
	})
	return classifier, responder, nil
}

// buildGateway authorizes against Gmail and returns a gateway plus a cleanup
// func closing the token store.
func buildGateway(ctx context.Context, cfg *config.Config) (*mail.GmailGateway, func(), error) {
	store, err := credential.NewSQLiteTokenStore(cfg.Gmail.TokenDB, logger)
	if err != nil {
		return nil, nil, err
	}
	client, err := credential.Authorize(ctx, credential.AuthorizeConfig{
		CredentialsFile: cfg.Gmail.CredentialsFile,
		Account:         cfg.Gmail.Account,
		Scopes:          []string{gmail.GmailModifyScope},
		Store:           store,
		Logger:          logger,
	})
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("gmail auth: %w", err)
	}
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("gmail client: %w", err)
	}
	gw := mail.NewGmailGateway(mail.GatewayConfig{
		Service:    srv,
		User:       cfg.Gmail.User,
		Query:      cfg.Gmail.Query,
		MaxResults: cfg.Gmail.MaxResults,
		From:       cfg.Gmail.From,
		Logger:     logger,
	})
	return gw, func() { store.Close() }, nil
}

func dumpMetrics(mc config.MetricsConfig) error {
	if !mc.Enabled {
		return nil
	}
	if mc.OutputFile == "" {
		return metrics.Collector.WriteText(os.Stderr)
	}
	f, err := os.Create(mc.OutputFile)
	if err != nil {
		return err
	}
	if err := metrics.Collector.WriteText(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
