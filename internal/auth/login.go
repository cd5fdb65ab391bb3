package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// loopbackPath is the HTTP path the OAuth2 redirect hits on the local server.
const loopbackPath = "/"

// shutdownTimeout is how long to wait for the callback server to drain.
const shutdownTimeout = 5 * time.Second

// callbackResult carries the authorization code or error from the callback handler.
type callbackResult struct {
	code string
	err  error
}

// LoginWithBrowser performs the authorization code + PKCE flow for a
// desktop OAuth client:
//  1. Binds a loopback HTTP server on a random port
//  2. Calls openURL with the consent URL
//  3. Receives the callback with the authorization code
//  4. Exchanges the code using the PKCE verifier
//  5. Looks up the account email (best effort)
//
// The caller persists the returned credentials.
func LoginWithBrowser(
	ctx context.Context,
	o *OAuth,
	openURL func(string) error,
	logger *slog.Logger,
) (*Credentials, error) {
	logger.Info("starting browser auth flow (authorization code + PKCE)")

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()

	srv, port, err := startCallbackServer(ctx, mux, resultCh, logger)
	if err != nil {
		return nil, err
	}

	defer shutdownCallbackServer(srv, logger)

	// Google desktop clients accept any loopback port.
	flow := o.WithRedirectURL(fmt.Sprintf("http://127.0.0.1:%d%s", port, loopbackPath))
	verifier := oauth2.GenerateVerifier()

	state, err := NewState()
	if err != nil {
		return nil, err
	}

	mux.HandleFunc("GET "+loopbackPath, func(w http.ResponseWriter, r *http.Request) {
		handleLoopbackCallback(w, r, state, resultCh)
	})

	authURL := flow.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	logger.Info("opening browser for authorization")

	if openErr := openURL(authURL); openErr != nil {
		return nil, fmt.Errorf("auth: presenting authorization URL: %w", openErr)
	}

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return nil, err
	}

	logger.Info("received authorization code, exchanging for token")

	creds, err := flow.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, err
	}

	if creds.RefreshToken == "" {
		logger.Warn("no refresh token issued; the login will stop working once the access token expires")
	}

	creds.Email = flow.LookupEmail(ctx, creds.AccessToken)

	logger.Info("browser login successful",
		slog.String("email", creds.Email),
		slog.Time("expiry", creds.Expiry),
	)

	return creds, nil
}

// startCallbackServer binds to 127.0.0.1:0 and serves mux. Returns the
// server and the bound port.
func startCallbackServer(
	ctx context.Context,
	mux *http.ServeMux,
	resultCh chan<- callbackResult,
	logger *slog.Logger,
) (*http.Server, int, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, fmt.Errorf("auth: binding loopback listener: %w", err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, 0, errors.New("auth: listener address is not TCP")
	}

	port := tcpAddr.Port
	logger.Debug("callback server listening", slog.Int("port", port))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			select {
			case resultCh <- callbackResult{err: fmt.Errorf("auth: callback server error: %w", serveErr)}:
			default:
			}
		}
	}()

	return srv, port, nil
}

// handleLoopbackCallback validates the state, extracts the code, and sends
// the result. Only the first callback is delivered.
func handleLoopbackCallback(w http.ResponseWriter, r *http.Request, state string, resultCh chan<- callbackResult) {
	q := r.URL.Query()

	var res callbackResult

	switch {
	case q.Get("state") != state:
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		res.err = errors.New("auth: OAuth2 state mismatch (possible CSRF)")
	case q.Get("error") != "":
		http.Error(w, "Authorization failed: "+q.Get("error"), http.StatusBadRequest)
		res.err = fmt.Errorf("auth: authorization failed: %s: %s", q.Get("error"), q.Get("error_description"))
	case q.Get("code") == "":
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		res.err = errors.New("auth: callback missing authorization code")
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><h1>Authentication successful</h1>"+
			"<p>You can close this window and return to the terminal.</p></body></html>")
		res.code = q.Get("code")
	}

	select {
	case resultCh <- res:
	default:
	}
}

func shutdownCallbackServer(srv *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

// waitForCallback blocks until the callback fires or the context is canceled.
func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}

		return result.code, nil
	case <-ctx.Done():
		return "", fmt.Errorf("auth: browser auth canceled: %w", ctx.Err())
	}
}
