package setup

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const usage = `ER DDX review MCP server setup

Usage:
  mcp-server-lite setup <command> [options]

Commands:
  register  Register the server with the desktop MCP client
  status    Show current registration status

Run "mcp-server-lite setup <command> --help" for command options.
`

// CLI provides command-line interface for setup operations.
type CLI struct {
	out io.Writer
}

// NewCLI creates a new setup CLI writing to out.
func NewCLI(out io.Writer) *CLI {
	return &CLI{out: out}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.out, usage)
		return nil
	}

	switch args[0] {
	case "register":
		return c.register(args[1:])
	case "status":
		return c.status(args[1:])
	case "help", "--help", "-h":
		fmt.Fprint(c.out, usage)
		return nil
	default:
		fmt.Fprint(c.out, usage)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func (c *CLI) flagSet(name string) (*pflag.FlagSet, *string) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.out)
	configPath := fs.StringP("config", "c", "", "client configuration file (default: platform location)")
	return fs, configPath
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return DesktopConfigPath()
}

func (c *CLI) register(args []string) error {
	fs, configFlag := c.flagSet("register")
	var opts Options
	fs.StringVarP(&opts.BinaryPath, "binary", "b", "", "server binary (default: this executable)")
	fs.StringVarP(&opts.ExportDir, "export-dir", "d", "", "directory export tools write into")
	fs.StringVarP(&opts.Prefer, "prefer", "p", "", "default model variant: applied or base")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.BinaryPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate executable: %w", err)
		}
		opts.BinaryPath = execPath
	}

	path, err := resolveConfigPath(*configFlag)
	if err != nil {
		return err
	}
	entry, err := Register(path, opts)
	if err != nil {
		return fmt.Errorf("failed to register server: %w", err)
	}

	fmt.Fprintf(c.out, "Registered %q in %s\n", ServerKey, path)
	fmt.Fprintf(c.out, "  command: %s\n", entry.Command)
	for k, v := range entry.Env {
		fmt.Fprintf(c.out, "  %s=%s\n", k, v)
	}
	fmt.Fprintln(c.out, "Restart the client to load the new configuration.")
	return nil
}

func (c *CLI) status(args []string) error {
	fs, configFlag := c.flagSet("status")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path, err := resolveConfigPath(*configFlag)
	if err != nil {
		return err
	}
	status, err := GetStatus(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Config path: %s\n", status.ConfigPath)
	if status.Registered {
		fmt.Fprintf(c.out, "Registered: yes (%s)\n", status.Entry.Command)
	} else {
		fmt.Fprintln(c.out, "Registered: no")
	}
	for _, issue := range status.Issues {
		fmt.Fprintf(c.out, "  ! %s\n", issue)
	}
	return nil
}
