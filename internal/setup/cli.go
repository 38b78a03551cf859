package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewCommand builds the "setup" command tree. Prompts read from in and all
// output goes to out.
func NewCommand(in io.Reader, out io.Writer) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the server with a desktop MCP client",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return nil
			}
			path, err := DesktopConfigPath()
			if err != nil {
				return err
			}
			configPath = path
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "desktop client config file (defaults to the platform location)")

	cmd.AddCommand(
		newDesktopCommand(in, out, &configPath),
		newStatusCommand(out, &configPath),
		newRemoveCommand(out, &configPath),
	)
	return cmd
}

func newDesktopCommand(in io.Reader, out io.Writer, configPath *string) *cobra.Command {
	var opts Options
	var yes bool

	cmd := &cobra.Command{
		Use:   "desktop",
		Short: "Add or update the server entry in the desktop client config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.BinaryPath == "" {
				if exe, err := os.Executable(); err == nil {
					opts.BinaryPath = exe
				}
			}

			fmt.Fprintf(out, "Config file:   %s\n", *configPath)
			fmt.Fprintf(out, "Server binary: %s\n", opts.BinaryPath)
			if opts.DataDir != "" {
				fmt.Fprintf(out, "Data dir:      %s\n", opts.DataDir)
			}

			if !yes && !confirm(in, out, "Proceed with configuration? [Y/n]: ") {
				fmt.Fprintln(out, "Configuration cancelled.")
				return nil
			}

			if err := Register(*configPath, opts); err != nil {
				return fmt.Errorf("failed to configure desktop client: %w", err)
			}
			fmt.Fprintln(out, "Configured. Restart the desktop client to load the server.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.BinaryPath, "binary", "b", "", "path to the server binary (defaults to this executable)")
	cmd.Flags().StringVarP(&opts.DataDir, "data-dir", "d", "", "data directory passed to the server")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newStatusCommand(out io.Writer, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := GetStatus(*configPath)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Config path: %s\n", status.ConfigPath)
			if !status.Registered {
				fmt.Fprintln(out, "Server:      not registered")
			} else {
				fmt.Fprintf(out, "Server:      %s (%s)\n", status.ServerPath, found(status.BinaryExists))
			}
			fmt.Fprintf(out, "Data dir:    %s (%s)\n", status.DataDir, found(status.DataDirReady))
			fmt.Fprintf(out, "Review DB:   %s\n", found(status.ReviewDB))
			return nil
		},
	}
}

func newRemoveCommand(out io.Writer, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Remove the server entry from the desktop client config",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := Unregister(*configPath)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintln(out, "Server entry removed.")
			} else {
				fmt.Fprintln(out, "Server was not registered.")
			}
			return nil
		},
	}
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "" || response == "y" || response == "yes"
}

func found(ok bool) string {
	if ok {
		return "found"
	}
	return "missing"
}
