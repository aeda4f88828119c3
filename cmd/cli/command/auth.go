package command

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"roomchat/cmd/cli/authentication"
	"roomchat/cmd/cli/command/client"
	"roomchat/internal/microservices/http-api/dto"
)

// auth.go handles authentication commands: register, login, logout, password and whoami.

// authCmd represents the auth command for authentication related subcommands
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  `Authenticate with the roomchat server. Supports registration, login, logout and whoami.`,
}

// registerCmd represents the register command
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new account",
	RunE: func(cmd *cobra.Command, args []string) error {
		var req dto.RegisterRequest
		req.Username, _ = cmd.Flags().GetString("username")
		req.Password, _ = cmd.Flags().GetString("password")

		ctx, cancel := requestContext(cmd)
		defer cancel()
		resp, err := client.NewHTTPClient(apiURL).Register(ctx, &req)
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}

		if err := saveToken(resp); err != nil {
			return err
		}
		fmt.Printf("✓ Registered and logged in as %s\n", resp.Username)
		return nil
	},
}

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login to your account",
	RunE: func(cmd *cobra.Command, args []string) error {
		var req dto.LoginRequest
		req.Username, _ = cmd.Flags().GetString("username")
		req.Password, _ = cmd.Flags().GetString("password")

		ctx, cancel := requestContext(cmd)
		defer cancel()
		resp, err := client.NewHTTPClient(apiURL).Login(ctx, &req)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		if err := saveToken(resp); err != nil {
			return err
		}
		fmt.Printf("✓ Logged in as %s\n", resp.Username)
		if resp.IsAdmin {
			fmt.Println("  (admin)")
		}
		return nil
	},
}

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()
		// best effort, the local session goes either way
		if httpClient, _, err := authedClient(ctx); err == nil {
			if err := httpClient.Logout(ctx); err != nil {
				color.Yellow("server logout failed: %v", err)
			}
		}
		if err := authentication.DeleteTokens(); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}
		fmt.Println("✓ Successfully logged out.")
		return nil
	},
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change the password of the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := dto.ChangePasswordRequest{}
		req.CurrentPassword, _ = cmd.Flags().GetString("current")
		req.NewPassword, _ = cmd.Flags().GetString("new")

		ctx, cancel := requestContext(cmd)
		defer cancel()
		httpClient, _, err := authedClient(ctx)
		if err != nil {
			return err
		}
		if err := httpClient.ChangePassword(ctx, &req); err != nil {
			return fmt.Errorf("change password failed: %w", err)
		}
		fmt.Println("✓ Password updated.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()
		httpClient, _, err := authedClient(ctx)
		if err != nil {
			return err
		}
		me, err := httpClient.Me(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Username: %s\n", me.Username)
		fmt.Printf("Admin:    %t\n", me.IsAdmin)
		if me.CurrentRoom != nil {
			fmt.Printf("Room:     %s\n", *me.CurrentRoom)
		}
		return nil
	},
}

// init function to add auth commands to root command
func init() {
	authCmd.AddCommand(registerCmd, loginCmd, logoutCmd, passwordCmd, whoamiCmd)
	rootCmd.AddCommand(authCmd)

	passwordCmd.Flags().String("current", "", "Current password")
	passwordCmd.Flags().String("new", "", "New password, at least 6 characters")
	_ = passwordCmd.MarkFlagRequired("current")
	_ = passwordCmd.MarkFlagRequired("new")

	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringP("username", "u", "", "Account username")
		c.Flags().StringP("password", "p", "", "Account password")
		_ = c.MarkFlagRequired("username")
		_ = c.MarkFlagRequired("password")
	}
}

// saveToken persists the session in the keyring.
func saveToken(resp *dto.AuthResponse) error {
	creds := &authentication.StoredCredentials{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Username:     resp.Username,
		APIURL:       apiURL,
		ExpiresAt:    time.Now().Unix() + resp.ExpiresIn,
	}
	if err := authentication.StoreTokens(creds); err != nil {
		return fmt.Errorf("could not store session: %w", err)
	}
	return nil
}
