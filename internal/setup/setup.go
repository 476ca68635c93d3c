// Package setup registers the stdio review server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/er-ddx-review-server/internal/domain"
)

// ServerKey names the review server entry in the client configuration
const ServerKey = "er-ddx-review"

// ClientConfig is the desktop client's MCP configuration file. Entries of
// other servers are preserved verbatim.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
}

// ServerEntry launches one MCP server.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options contains options for registration.
type Options struct {
	BinaryPath string // Path to the lite server binary
	ExportDir  string // Overrides DDX_EXPORT_DIR when set
	Prefer     string // Overrides DDX_PREFER when set
}

// DesktopConfigPath returns the platform location of the desktop client's
// configuration file.
func DesktopConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		// Try XDG config first, then fallback
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads the client configuration. A missing file yields an
// empty configuration.
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ClientConfig{MCPServers: make(map[string]ServerEntry)}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ClientConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]ServerEntry)
	}
	return &config, nil
}

// SaveClientConfig writes the client configuration, creating its directory.
func SaveClientConfig(path string, config *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the review server entry in the client
// configuration at path.
func Register(path string, opts Options) (ServerEntry, error) {
	if opts.BinaryPath == "" {
		return ServerEntry{}, domain.NewValidationError("binary", "server binary path is required", "")
	}
	entry := ServerEntry{Command: opts.BinaryPath, Env: map[string]string{}}

	if opts.Prefer != "" {
		prefer, err := domain.ParseModelVariant(opts.Prefer)
		if err != nil {
			return ServerEntry{}, domain.NewValidationError("prefer", err.Error(), opts.Prefer)
		}
		entry.Env["DDX_PREFER"] = string(prefer)
	}
	if opts.ExportDir != "" {
		abs, err := filepath.Abs(opts.ExportDir)
		if err != nil {
			return ServerEntry{}, fmt.Errorf("failed to resolve export directory: %w", err)
		}
		entry.Env["DDX_EXPORT_DIR"] = abs
	}

	config, err := LoadClientConfig(path)
	if err != nil {
		return ServerEntry{}, err
	}
	config.MCPServers[ServerKey] = entry

	if err := SaveClientConfig(path, config); err != nil {
		return ServerEntry{}, err
	}
	return entry, nil
}

// Status represents the current registration status.
type Status struct {
	ConfigPath string
	Registered bool
	Entry      ServerEntry
	Issues     []string
}

// GetStatus inspects the client configuration at path.
func GetStatus(path string) (*Status, error) {
	status := &Status{ConfigPath: path, Issues: []string{}}

	config, err := LoadClientConfig(path)
	if err != nil {
		return nil, err
	}

	entry, ok := config.MCPServers[ServerKey]
	if !ok {
		status.Issues = append(status.Issues, "review server is not registered")
		return status, nil
	}
	status.Registered = true
	status.Entry = entry

	info, err := os.Stat(entry.Command)
	switch {
	case os.IsNotExist(err):
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	case err == nil && info.Mode()&0111 == 0:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}
	if p, ok := entry.Env["DDX_PREFER"]; ok {
		if _, err := domain.ParseModelVariant(p); err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("invalid DDX_PREFER: %s", p))
		}
	}
	return status, nil
}
