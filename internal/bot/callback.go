package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// CallbackHandler completes the web OAuth flow started by /connect.
func (s *Service) CallbackHandler() http.Handler {
	return http.HandlerFunc(s.handleCallback)
}

func (s *Service) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		s.logger.Info("oauth callback returned error", slog.String("error", e))
		writePage(w, http.StatusBadRequest, "Authorization failed: "+e)

		return
	}

	state := q.Get("state")
	if state == "" {
		writePage(w, http.StatusBadRequest, "Missing state parameter.")
		return
	}

	// Checked before the state is consumed so a malformed redirect leaves
	// the /connect link usable.
	code := q.Get("code")
	if code == "" {
		writePage(w, http.StatusBadRequest, "Missing authorization code.")
		return
	}

	user, ok, err := s.state.ConsumeOAuthState(ctx, state)
	if err != nil {
		s.logger.Error("consuming oauth state", slog.String("error", err.Error()))
		writePage(w, http.StatusInternalServerError, "Internal error.")

		return
	}

	if !ok {
		writePage(w, http.StatusBadRequest, "This link is invalid or has expired. Send /connect again.")
		return
	}

	creds, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("oauth code exchange failed", slog.String("user", user), slog.String("error", err.Error()))
		writePage(w, http.StatusBadGateway, "Token exchange failed. Send /connect to try again.")

		return
	}

	creds.Email = s.oauth.LookupEmail(ctx, creds.AccessToken)

	if err := s.state.PutCredentials(ctx, user, creds); err != nil {
		s.logger.Error("saving credentials", slog.String("user", user), slog.String("error", err.Error()))
		writePage(w, http.StatusInternalServerError, "Internal error.")

		return
	}

	s.logger.Info("google account connected", slog.String("user", user))

	if chatID, err := chatOf(user); err == nil {
		label := creds.Email
		if label == "" {
			label = "your account"
		}

		s.reply(ctx, chatID, fmt.Sprintf("Google connected: %s. Now /setchannel, then /picker.", label))
	}

	writePage(w, http.StatusOK, "Google connected. You can return to Telegram.")
}

func writePage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<html><body><p>%s</p></body></html>", html.EscapeString(msg))
}

// ServeCallback serves the OAuth callback at path on addr until ctx is
// canceled, then shuts down gracefully. A /healthz endpoint answers 200.
func (s *Service) ServeCallback(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle("GET "+path, s.CallbackHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("bot: listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Serve(listener)
	}()

	s.logger.Info("oauth callback server listening", slog.String("addr", listener.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("bot: callback server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("bot: shutting down callback server: %w", err)
	}

	return nil
}
