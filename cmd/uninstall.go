package cmd

import (
	"fmt"
	"os"

	"github.com/jfmyers9/lbscrobble/internal/daemon"
	"github.com/spf13/cobra"
)

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the lbscrobble daemon user service",
	Long: `Uninstall the lbscrobble daemon and stop it from running automatically.

This command will:
  - Stop the running daemon (if any)
  - Unload it from launchd or systemd
  - Remove the service file

Submission history in ~/.local/share/lbscrobble is kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := daemon.DefaultServiceManager()
		if err != nil {
			return err
		}

		servicePath, err := daemon.ServicePath(manager)
		if err != nil {
			return err
		}

		if _, err := os.Stat(servicePath); os.IsNotExist(err) {
			fmt.Println("Daemon is not installed (service file not found)")
			return nil
		}

		fmt.Println("Stopping daemon...")
		if err := unloadService(manager); err != nil {
			fmt.Printf("Warning: failed to unload daemon: %v\n", err)
			fmt.Println("Continuing with service file removal...")
		} else {
			fmt.Println("✓ Daemon stopped")
		}

		if err := os.Remove(servicePath); err != nil {
			return fmt.Errorf("failed to remove service file: %w", err)
		}

		fmt.Printf("✓ Removed %s\n", servicePath)
		fmt.Println("\nThe lbscrobble daemon has been uninstalled successfully.")
		fmt.Println("\nTo reinstall, run:")
		fmt.Println("  lbscrobble install")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
