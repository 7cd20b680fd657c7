package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jfmyers9/lbscrobble/internal/config"
	"github.com/jfmyers9/lbscrobble/pkg/listenbrainz"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with ListenBrainz",
	Long: `Authenticate with ListenBrainz to enable submissions.

This command will:
1. Prompt for your ListenBrainz user token
2. Validate the token against the configured ListenBrainz server
3. Save the token to your config file and enable submission

You can find your user token at: https://listenbrainz.org/settings/`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("ListenBrainz Authentication")
	fmt.Println("===========================")
	fmt.Println()
	fmt.Println("You can find your user token at: https://listenbrainz.org/settings/")
	fmt.Println()

	// Check if we already have a token
	if cfg.ListenBrainz.Token != "" {
		fmt.Printf("Found existing token for %s.\n", cfg.ListenBrainz.URL)
		fmt.Print("\nKeep existing token? [Y/n]: ")
		response, err := reader.ReadString('\n')
		if err != nil {
			response = "y"
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "" && response != "y" && response != "yes" {
			cfg.ListenBrainz.Token = ""
		}
	}

	if cfg.ListenBrainz.Token == "" {
		fmt.Print("Enter your ListenBrainz user token: ")
		token, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
		cfg.ListenBrainz.Token = strings.TrimSpace(token)
	}

	if cfg.ListenBrainz.Token == "" {
		return fmt.Errorf("a user token is required")
	}

	client, err := listenbrainz.NewClient(listenbrainz.Config{
		Token:   cfg.ListenBrainz.Token,
		BaseURL: cfg.ListenBrainz.URL,
	})
	if err != nil {
		return fmt.Errorf("failed to create ListenBrainz client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	fmt.Println("\nValidating token...")
	validation, err := client.Auth().ValidateToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to validate token: %w", err)
	}
	if !validation.Valid {
		return fmt.Errorf("token rejected by %s: %s", cfg.ListenBrainz.URL, validation.Message)
	}

	cfg.ListenBrainz.Enabled = true
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("\n✓ Authenticated as %s\n", validation.UserName)
	fmt.Printf("✓ Token saved to %s/config.yaml\n", config.GetConfigDir())
	fmt.Println("\nYou can now use 'lbscrobble daemon' to start scrobbling.")

	return nil
}
