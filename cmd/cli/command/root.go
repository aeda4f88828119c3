package command

// root.go defines the root command for the roomchat CLI.
// set up the global flags here.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"roomchat/cmd/cli/authentication"
	"roomchat/cmd/cli/command/client"
)

const requestTimeout = 15 * time.Second

var apiURL string // Global flag for API server URL

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "roomchat",
	Short: "roomchat - chat server command line client",
	Long: `roomchat talks to a roomchat server over HTTP and WebSocket. Users can:
- Register, login and keep their session in the OS keyring
- List rooms and read their history
- Join a room and chat in real time
- Create and delete rooms (admins)

Use "roomchat command -h" to see all available commands.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err) // Print error to standard error
		os.Exit(1)
	}
}

func init() {
	defaultAPI := os.Getenv("ROOMCHAT_API")
	if defaultAPI == "" {
		defaultAPI = "http://localhost:8080"
	}
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultAPI, "API server URL")
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}

// authedClient returns a client carrying the stored access token. An expired
// access token is swapped for a fresh one using the refresh token.
func authedClient(ctx context.Context) (*client.HTTPClient, *authentication.StoredCredentials, error) {
	creds, err := authentication.GetTokens()
	if err != nil {
		return nil, nil, err
	}
	base := apiURL
	if !rootCmd.PersistentFlags().Changed("api") && creds.APIURL != "" {
		base = creds.APIURL
	}
	httpClient := client.NewHTTPClient(base)

	if creds.ExpiresAt > 0 && time.Now().Unix() >= creds.ExpiresAt {
		refreshed, err := httpClient.Refresh(ctx, creds.RefreshToken)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				return nil, nil, authentication.ErrNotLoggedIn
			}
			return nil, nil, err
		}
		creds.AccessToken = refreshed.AccessToken
		creds.ExpiresAt = time.Now().Unix() + refreshed.ExpiresIn
		if err := authentication.StoreTokens(creds); err != nil {
			return nil, nil, fmt.Errorf("store refreshed token: %w", err)
		}
	}

	httpClient.SetToken(creds.AccessToken)
	return httpClient, creds, nil
}
