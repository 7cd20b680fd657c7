package daemon

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

// ServiceLabel identifies the daemon to launchd
const ServiceLabel = "com.lbscrobble.daemon"

// ServiceUnit is the systemd user unit name
const ServiceUnit = "lbscrobble.service"

// ServiceManager is the init system that keeps the daemon running
type ServiceManager string

const (
	Launchd ServiceManager = "launchd"
	Systemd ServiceManager = "systemd"
)

const plistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.BinaryPath}}</string>
		<string>daemon</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>StandardOutPath</key>
	<string>{{.LogPath}}/lbscrobble.log</string>
	<key>StandardErrorPath</key>
	<string>{{.LogPath}}/lbscrobble.err</string>
	<key>WorkingDirectory</key>
	<string>{{.WorkingDirectory}}</string>
	<key>EnvironmentVariables</key>
	<dict>
		<key>PATH</key>
		<string>/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin</string>
	</dict>
</dict>
</plist>
`

const unitTemplate = `[Unit]
Description=ListenBrainz scrobbler
After=graphical-session.target

[Service]
Type=simple
ExecStart={{.BinaryPath}} daemon --log-file {{.LogPath}}/lbscrobble.log
WorkingDirectory={{.WorkingDirectory}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

// ServiceConfig holds the values substituted into a service definition
type ServiceConfig struct {
	Label            string
	BinaryPath       string
	LogPath          string
	WorkingDirectory string
}

// DefaultServiceManager picks the service manager for the running OS
func DefaultServiceManager() (ServiceManager, error) {
	switch runtime.GOOS {
	case "darwin":
		return Launchd, nil
	case "linux":
		return Systemd, nil
	default:
		return "", fmt.Errorf("no service manager support on %s", runtime.GOOS)
	}
}

// GenerateService renders the service definition for m
func GenerateService(m ServiceManager, config ServiceConfig) (string, error) {
	var text string
	switch m {
	case Launchd:
		text = plistTemplate
	case Systemd:
		text = unitTemplate
	default:
		return "", fmt.Errorf("unknown service manager %q", m)
	}

	if config.Label == "" {
		config.Label = ServiceLabel
	}

	tmpl, err := template.New(string(m)).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", m, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", m, err)
	}

	return buf.String(), nil
}

// ServicePath returns where the service definition for m is installed
func ServicePath(m ServiceManager) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	switch m {
	case Launchd:
		return filepath.Join(home, "Library", "LaunchAgents", ServiceLabel+".plist"), nil
	case Systemd:
		return filepath.Join(home, ".config", "systemd", "user", ServiceUnit), nil
	default:
		return "", fmt.Errorf("unknown service manager %q", m)
	}
}

// GetDefaultLogPath returns the default path for daemon logs
func GetDefaultLogPath() (string, error) {
	dataDir, err := GetDefaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "logs"), nil
}

// GetDefaultDataDir returns the directory holding the history database
func GetDefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".local", "share", "lbscrobble"), nil
}
