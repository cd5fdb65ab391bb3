package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/pickrelay/internal/auth"
	"github.com/tonimelisma/pickrelay/internal/config"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize pickrelay with your Google account",
		Long: "Open the Google consent page in a browser and store the resulting token\n" +
			"for the run command. The OAuth client must be a desktop client.",
		RunE: runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved Google token",
		RunE:  runLogout,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cfg := resolvedCfg
	if err := config.RequireLogin(cfg); err != nil {
		return err
	}

	logger := buildLogger()
	ctx := shutdownContext(cmd.Context(), logger)

	o, err := newOAuth(cfg, logger)
	if err != nil {
		return err
	}

	creds, err := auth.LoginWithBrowser(ctx, o, openBrowser, logger)
	if err != nil {
		return err
	}

	files := auth.NewFileStore(cfg.TokenDir())
	if err := files.Put(ctx, cliUser, creds); err != nil {
		return err
	}

	if creds.Email != "" {
		statusf("Logged in as %s.\n", creds.Email)
	} else {
		statusf("Logged in.\n")
	}

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	files := auth.NewFileStore(resolvedCfg.TokenDir())

	removed, err := files.Remove(cliUser)
	if err != nil {
		return err
	}

	if !removed {
		statusf("Not logged in.\n")
		return nil
	}

	statusf("Logged out.\n")

	return nil
}

// openBrowser prints the consent URL and tries to open it. Failing to
// launch a browser is not an error: the printed URL still works.
func openBrowser(url string) error {
	// The URL must stay visible even with --quiet.
	fmt.Fprintf(os.Stderr, "Open this URL to authorize pickrelay:\n\n  %s\n\n", url)

	var name string

	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "linux":
		name = "xdg-open"
	default:
		return nil
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return nil
	}

	_ = exec.Command(path, url).Start() //nolint:gosec // fixed binary, URL argument

	return nil
}
