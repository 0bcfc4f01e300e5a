package credential

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// TokenStore persists OAuth tokens per account.
type TokenStore interface {
	Load(ctx context.Context, account string) (*oauth2.Token, error)
	Save(ctx context.Context, account string, tok *oauth2.Token) error
}

// AuthorizeConfig describes where to find the client secret and how to talk
// to the operator during first-time consent.
type AuthorizeConfig struct {
	CredentialsFile string
	Account         string
	Scopes          []string
	Store           TokenStore
	In              io.Reader // authorization code input, defaults to os.Stdin
	Out             io.Writer // consent URL output, defaults to os.Stderr
	Logger          *slog.Logger
}

// OAuthConfigFromFile parses a Google client secret JSON file.
func OAuthConfigFromFile(path string, scopes ...string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	return cfg, nil
}

// Authorize returns an HTTP client carrying a valid token for the account.
// A cached token is used when present; otherwise the operator is sent through
// the consent URL and pastes the authorization code. Refreshed tokens are
// written back to the store.
func Authorize(ctx context.Context, cfg AuthorizeConfig) (*http.Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stderr
	}

	oauthCfg, err := OAuthConfigFromFile(cfg.CredentialsFile, cfg.Scopes...)
	if err != nil {
		return nil, err
	}

	tok, err := cfg.Store.Load(ctx, cfg.Account)
	switch {
	case errors.Is(err, ErrNoToken):
		tok, err = tokenFromWeb(ctx, oauthCfg, cfg.In, cfg.Out)
		if err != nil {
			return nil, err
		}
		if err := cfg.Store.Save(ctx, cfg.Account, tok); err != nil {
			return nil, err
		}
		cfg.Logger.Info("stored new oauth token", "account", cfg.Account)
	case err != nil:
		return nil, err
	}

	src := NewPersistingTokenSource(ctx, oauthCfg.TokenSource(ctx, tok), tok, cfg.Account, cfg.Store, cfg.Logger)
	return oauth2.NewClient(ctx, src), nil
}

func tokenFromWeb(ctx context.Context, cfg *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Go to the following link in your browser then type the "+
		"authorization code:\n%v\n", authURL)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return nil, fmt.Errorf("empty authorization code")
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

// persistingTokenSource writes a token back to the store whenever the
// underlying source hands out a different access token.
type persistingTokenSource struct {
	ctx     context.Context
	src     oauth2.TokenSource
	account string
	store   TokenStore
	logger  *slog.Logger

	mu      sync.Mutex
	current string
}

// NewPersistingTokenSource wraps src so refreshed tokens survive the process.
func NewPersistingTokenSource(ctx context.Context, src oauth2.TokenSource, initial *oauth2.Token, account string, store TokenStore, logger *slog.Logger) oauth2.TokenSource {
	current := ""
	if initial != nil {
		current = initial.AccessToken
	}
	return &persistingTokenSource{
		ctx:     ctx,
		src:     src,
		account: account,
		store:   store,
		logger:  logger,
		current: current,
	}
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.AccessToken != s.current {
		s.current = t.AccessToken
		if err := s.store.Save(s.ctx, s.account, t); err != nil {
			// The in-memory token is still good for this run.
			s.logger.Warn("failed to persist refreshed token", "account", s.account, "err", err)
		} else {
			s.logger.Debug("persisted refreshed token", "account", s.account)
		}
	}
	return t, nil
}
