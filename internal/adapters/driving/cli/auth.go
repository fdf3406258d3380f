package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

var statusJSON bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Viewshot",
	Long: `Sign in with the OAuth device flow.

viewshot prints a short code and a verification URL. Open the URL on any
device, enter the code and approve the request; the command finishes as
soon as the server confirms. The session is stored locally and refreshed
automatically.

Examples:
  viewshot login
  viewshot login --no-browser
  viewshot login --server https://viewshot.example.com`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return errors.New("auth service not configured")
	}

	if authService.IsAuthenticated() {
		cmd.Printf("Already signed in as %s.\n", displayName(authService.CurrentSession()))
		return nil
	}

	ok, err := authService.Authenticate(cmd.Context())
	switch {
	case errors.Is(err, context.Canceled):
		return errors.New("login cancelled")
	case errors.Is(err, domain.ErrDeviceFlowExpired):
		return errors.New("the code expired before it was approved, run 'viewshot login' again")
	case errors.Is(err, domain.ErrAccessDenied):
		return errors.New("the request was denied")
	case err != nil:
		return fmt.Errorf("login failed: %w", err)
	case !ok:
		return errors.New("login failed")
	}

	cmd.Printf("Signed in as %s.\n", displayName(authService.CurrentSession()))
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return errors.New("auth service not configured")
	}

	if err := authService.SignOut(cmd.Context()); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	cmd.Println("Signed out.")
	return nil
}

// statusOutput is the JSON shape of `viewshot status --json`.
type statusOutput struct {
	Server  string          `json:"server"`
	State   string          `json:"state"`
	Session *domain.Session `json:"session,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return errors.New("auth service not configured")
	}

	// CurrentSession carries no tokens, so the recorded state is reported.
	session := authService.CurrentSession()
	state := domain.AuthStateNotAuthenticated
	if session != nil {
		state = session.State
	}

	if statusJSON {
		data, err := json.MarshalIndent(statusOutput{
			Server:  clientConfig.ServerURL,
			State:   state.String(),
			Session: session,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Server:   %s\n", clientConfig.ServerURL)
	cmd.Printf("State:    %s\n", state)
	if state != domain.AuthStateAuthenticated && state != domain.AuthStateExpired {
		cmd.Println()
		cmd.Println("Not signed in. Run: viewshot login")
		return nil
	}

	cmd.Printf("User:     %s\n", displayName(session))
	if session.UserEmail != "" {
		cmd.Printf("Email:    %s\n", session.UserEmail)
	}
	cmd.Printf("Expires:  %s (%s)\n",
		session.TokenExpiry.Local().Format(time.RFC3339), humanUntil(session.TokenExpiry))
	if !session.LastRefreshed.IsZero() {
		cmd.Printf("Refreshed: %s\n", session.LastRefreshed.Local().Format(time.RFC3339))
	}
	cmd.Printf("Instance: %s\n", session.InstanceID)
	return nil
}

// displayName picks the friendliest identity the session carries.
func displayName(s *domain.Session) string {
	switch {
	case s == nil:
		return "unknown user"
	case s.UserDisplayName != "":
		return s.UserDisplayName
	case s.Username != "":
		return s.Username
	case s.UserEmail != "":
		return s.UserEmail
	default:
		return s.UserID
	}
}

func humanUntil(t time.Time) string {
	d := time.Until(t).Round(time.Minute)
	if d <= 0 {
		return "expired"
	}
	return "in " + d.String()
}
