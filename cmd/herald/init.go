package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hexfoundry/herald/internal/config"
)

func newInitCmd() *cobra.Command {
	var (
		configPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a herald config file interactively",
		Long: `Writes a starter herald.yaml. The bot token is read without echo when
stdin is a terminal; leave it blank to provide it later via the
HERALD_TELEGRAM_TOKEN environment variable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, configPath, force)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to write the config file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func runInit(cmd *cobra.Command, configPath string, force bool) error {
	out := cmd.OutOrStdout()

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	token, err := promptToken(cmd)
	if err != nil {
		return err
	}

	data := renderConfig(token)
	if _, err := config.Parse(data); err != nil {
		return err
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", configPath, err)
	}

	fmt.Fprintf(out, "Wrote %s\n", configPath)
	if token == "" {
		fmt.Fprintln(out, "No token stored; set HERALD_TELEGRAM_TOKEN before running serve.")
	}
	fmt.Fprintln(out, "Next: herald db migrate, then herald serve.")
	return nil
}

// promptToken reads the bot token, without echo when stdin is a real
// terminal and line-wise otherwise (pipes, tests).
func promptToken(cmd *cobra.Command) (string, error) {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, "Telegram bot token (blank to skip): ")

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	return "", scanner.Err()
}

func renderConfig(token string) []byte {
	var b strings.Builder
	b.WriteString("telegram:\n")
	fmt.Fprintf(&b, "  token: %q\n", token)
	b.WriteString("  broadcast_chat_id: 0\n")
	b.WriteString("db:\n")
	b.WriteString("  path: herald.db\n")
	b.WriteString("scheduler:\n")
	b.WriteString("  poll_interval_sec: 60\n")
	b.WriteString("  batch_limit: 100\n")
	b.WriteString("  send_timeout_sec: 10\n")
	b.WriteString("messages:\n")
	b.WriteString("  max_length: 4096\n")
	b.WriteString("timezone: Local\n")
	b.WriteString("dashboard:\n")
	b.WriteString("  enabled: false\n")
	b.WriteString("  port: 8090\n")
	b.WriteString("digest:\n")
	b.WriteString("  enabled: false\n")
	b.WriteString("  schedule: \"0 9 * * *\"\n")
	b.WriteString("log_level: info\n")
	return []byte(b.String())
}
