package spotify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"aurora/internal/logger"
)

// Scopes requested for playback control and catalog reads.
var Scopes = []string{
	"user-read-playback-state",
	"user-read-currently-playing",
	"user-modify-playback-state",
	"playlist-read-private",
	"playlist-read-collaborative",
}

// Endpoint is the Spotify accounts service.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

// Authenticator runs the authorization-code flow and keeps the token on disk.
type Authenticator struct {
	conf      *oauth2.Config
	cachePath string
	log       *logger.Logger

	// OpenURL is called with the consent URL; nil prints it only.
	OpenURL func(string) error
}

// NewAuthenticator creates an Authenticator for the given app credentials.
func NewAuthenticator(clientID, clientSecret, redirectURI, cachePath string, log *logger.Logger) *Authenticator {
	return &Authenticator{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       Scopes,
			Endpoint:     Endpoint,
		},
		cachePath: cachePath,
		log:       log,
		OpenURL:   openBrowser,
	}
}

// HTTPClient returns a client that authorizes every request, logging in
// interactively when no usable token is cached.
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	tok, err := a.loadToken()
	if err != nil {
		a.log.Debug("No cached Spotify token: %v", err)
		tok, err = a.login(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.saveToken(tok); err != nil {
			a.log.Warn("Could not cache Spotify token: %v", err)
		}
	}

	src := &savingSource{
		base: a.conf.TokenSource(ctx, tok),
		last: tok.AccessToken,
		save: a.saveToken,
		log:  a.log,
	}
	client := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src))
	client.Timeout = 15 * time.Second
	return client, nil
}

func (a *Authenticator) login(ctx context.Context) (*oauth2.Token, error) {
	redirect, err := url.Parse(a.conf.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI %q: %w", a.conf.RedirectURL, err)
	}

	state, err := randomState()
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s for the login callback: %w", redirect.Host, err)
	}

	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)
	path := redirect.Path
	if path == "" {
		path = "/"
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			done <- result{err: errors.New("login callback state mismatch")}
		case q.Get("error") != "":
			http.Error(w, "authorization denied", http.StatusForbidden)
			done <- result{err: fmt.Errorf("authorization denied: %s", q.Get("error"))}
		default:
			fmt.Fprintln(w, "Aurora is authorized. You can close this tab.")
			done <- result{code: q.Get("code")}
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go srv.Serve(ln)
	defer srv.Close()

	authURL := a.conf.AuthCodeURL(state)
	a.log.Info("Authorize Aurora in your browser:\n  %s", authURL)
	if a.OpenURL != nil {
		if err := a.OpenURL(authURL); err != nil {
			a.log.Debug("Could not open browser: %v", err)
		}
	}

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := a.conf.Exchange(ctx, res.code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return tok, nil
}

func (a *Authenticator) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(a.cachePath)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token cache: %w", err)
	}
	if tok.RefreshToken == "" && !tok.Valid() {
		return nil, errors.New("cached token expired and cannot be refreshed")
	}
	return &tok, nil
}

func (a *Authenticator) saveToken(tok *oauth2.Token) error {
	if a.cachePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(a.cachePath), 0700); err != nil {
		return fmt.Errorf("failed to create token cache directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return os.WriteFile(a.cachePath, data, 0600)
}

// savingSource persists every newly refreshed token.
type savingSource struct {
	base oauth2.TokenSource
	save func(*oauth2.Token) error
	log  *logger.Logger

	mu   sync.Mutex
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("spotify token refresh failed: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.save(tok); err != nil {
			s.log.Warn("Could not cache refreshed Spotify token: %v", err)
		}
	}
	return tok, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate login state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func openBrowser(u string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", u)
	case "darwin":
		cmd = exec.Command("open", u)
	default:
		cmd = exec.Command("xdg-open", u)
	}
	return cmd.Start()
}
