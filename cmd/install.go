package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jfmyers9/lbscrobble/internal/daemon"
	"github.com/spf13/cobra"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the lbscrobble daemon as a user service",
	Long: `Install the lbscrobble daemon as a user service that runs automatically on login.

On macOS this installs a launchd agent to ~/Library/LaunchAgents/.
On Linux this installs a systemd user unit to ~/.config/systemd/user/.

The service is loaded and started immediately. The daemon will run in the
background and submit your listens to ListenBrainz.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := daemon.DefaultServiceManager()
		if err != nil {
			return err
		}

		// Get the path to the current executable
		binaryPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		// Resolve symlinks to get the actual binary path
		binaryPath, err = filepath.EvalSymlinks(binaryPath)
		if err != nil {
			return fmt.Errorf("failed to resolve executable path: %w", err)
		}

		logPath, err := daemon.GetDefaultLogPath()
		if err != nil {
			return fmt.Errorf("failed to get log path: %w", err)
		}
		if err := os.MkdirAll(logPath, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		content, err := daemon.GenerateService(manager, daemon.ServiceConfig{
			BinaryPath:       binaryPath,
			LogPath:          logPath,
			WorkingDirectory: home,
		})
		if err != nil {
			return fmt.Errorf("failed to generate service definition: %w", err)
		}

		servicePath, err := daemon.ServicePath(manager)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(servicePath), 0755); err != nil {
			return fmt.Errorf("failed to create service directory: %w", err)
		}

		if _, err := os.Stat(servicePath); err == nil {
			fmt.Println("Daemon is already installed. Uninstalling first...")
			if err := unloadService(manager); err != nil {
				fmt.Printf("Warning: failed to unload existing daemon: %v\n", err)
			}
		}

		if err := os.WriteFile(servicePath, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write service file: %w", err)
		}
		fmt.Printf("✓ Installed %s service to %s\n", manager, servicePath)

		if err := loadService(manager, servicePath); err != nil {
			return fmt.Errorf("failed to load daemon: %w", err)
		}

		fmt.Println("✓ Daemon loaded and started successfully")
		fmt.Printf("✓ Logs will be written to %s\n", logPath)
		fmt.Println("\nThe lbscrobble daemon is now running and will start automatically on login.")
		fmt.Println("\nYou can check the daemon status with:")
		if manager == daemon.Launchd {
			fmt.Println("  launchctl list | grep lbscrobble")
		} else {
			fmt.Println("  systemctl --user status lbscrobble")
		}
		fmt.Println("\nTo uninstall, run:")
		fmt.Println("  lbscrobble uninstall")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

// launchdDomain returns the gui/<uid> domain of the current user
func launchdDomain() (string, error) {
	out, err := exec.Command("id", "-u").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get user ID: %w", err)
	}
	return "gui/" + strings.TrimSpace(string(out)), nil
}

// loadService registers and starts the installed service
func loadService(manager daemon.ServiceManager, servicePath string) error {
	switch manager {
	case daemon.Launchd:
		domain, err := launchdDomain()
		if err != nil {
			return err
		}
		if output, err := exec.Command("launchctl", "bootstrap", domain, servicePath).CombinedOutput(); err != nil {
			if len(output) > 0 {
				return fmt.Errorf("launchctl bootstrap failed: %s", strings.TrimSpace(string(output)))
			}
			return fmt.Errorf("failed to run launchctl bootstrap: %w", err)
		}
	case daemon.Systemd:
		if output, err := exec.Command("systemctl", "--user", "daemon-reload").CombinedOutput(); err != nil {
			return fmt.Errorf("systemctl daemon-reload failed: %s", strings.TrimSpace(string(output)))
		}
		if output, err := exec.Command("systemctl", "--user", "enable", "--now", daemon.ServiceUnit).CombinedOutput(); err != nil {
			return fmt.Errorf("systemctl enable failed: %s", strings.TrimSpace(string(output)))
		}
	}
	return nil
}

// unloadService stops the service. Not being loaded is not an error.
func unloadService(manager daemon.ServiceManager) error {
	var cmd *exec.Cmd
	switch manager {
	case daemon.Launchd:
		domain, err := launchdDomain()
		if err != nil {
			return err
		}
		cmd = exec.Command("launchctl", "bootout", domain+"/"+daemon.ServiceLabel)
	case daemon.Systemd:
		cmd = exec.Command("systemctl", "--user", "disable", "--now", daemon.ServiceUnit)
	default:
		return nil
	}

	if output, err := cmd.CombinedOutput(); err != nil && len(output) > 0 {
		fmt.Printf("Warning: %s\n", strings.TrimSpace(string(output)))
	}
	return nil
}
