package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// fileConfig is the layout of $HOME/.utf8mb4-convert/config.yaml.
type fileConfig struct {
	Connection connectionSection `yaml:"connection"`
	Defaults   defaultsSection   `yaml:"defaults"`
}

type connectionSection struct {
	Host   string `yaml:"host,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	User   string `yaml:"user,omitempty"`
	Socket string `yaml:"socket,omitempty"`
	TLS    string `yaml:"tls,omitempty"`
	TLSCA  string `yaml:"tls_ca,omitempty"`
}

type defaultsSection struct {
	Summary   string `yaml:"summary,omitempty"`
	Collation string `yaml:"collation,omitempty"`
}

const configHeader = `# utf8mb4-convert configuration
# password: omitted for security, use MYSQL_PWD or --password

`

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage utf8mb4-convert configuration",
}

var configInitCmd = &cobra.Command{
	Use:          "init",
	Short:        "Create config file interactively",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		reader := bufio.NewReader(cmd.InOrStdin())
		ask := func(prompt, def string) string {
			if def != "" {
				fmt.Fprintf(out, "%s [%s]: ", prompt, def)
			} else {
				fmt.Fprintf(out, "%s: ", prompt)
			}
			answer, _ := reader.ReadString('\n')
			answer = strings.TrimSpace(answer)
			if answer == "" {
				return def
			}
			return answer
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		configDir := filepath.Join(home, ".utf8mb4-convert")
		configPath := filepath.Join(configDir, "config.yaml")

		// Check if config already exists
		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Config file already exists at %s\n", configPath)
			if strings.ToLower(ask("Overwrite? [y/N]", "")) != "y" {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
		}

		// Create config directory
		if err := os.MkdirAll(configDir, 0700); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		fmt.Fprintln(out, "utf8mb4-convert configuration setup")
		fmt.Fprintln(out, "───────────────────────────────────")
		fmt.Fprintln(out)

		var cfg fileConfig
		cfg.Connection.Host = ask("MySQL host", "localhost")
		port, err := strconv.Atoi(ask("MySQL port", "3306"))
		if err != nil {
			return fmt.Errorf("invalid port: %w", err)
		}
		cfg.Connection.Port = port
		cfg.Connection.User = ask("MySQL user", "root")
		cfg.Connection.Socket = ask("Unix socket (optional)", "")
		cfg.Connection.TLS = ask("TLS mode (optional)", "")
		if cfg.Connection.TLS == "custom" {
			cfg.Connection.TLSCA = ask("CA certificate file", "")
		}
		cfg.Defaults.Summary = ask("Run summary format", "auto")
		cfg.Defaults.Collation = ask("Target collation (optional)", "")

		data, err := yaml.Marshal(&cfg)
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		if err := os.WriteFile(configPath, append([]byte(configHeader), data...), 0600); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Fprintf(out, "\n✅ Config written to %s\n", configPath)

		// Don't recommend creating root user
		if cfg.Connection.User != "root" {
			fmt.Fprintln(out, "\nRecommended grants for the conversion user:")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  CREATE USER '%s'@'%%' IDENTIFIED BY '<password>';\n", cfg.Connection.User)
			fmt.Fprintf(out, "  GRANT SELECT, ALTER ON *.* TO '%s'@'%%';\n", cfg.Connection.User)
			fmt.Fprintln(out)
		}

		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			fmt.Fprintln(out, "No config file found.")
			fmt.Fprintln(out, "Run 'utf8mb4-convert config init' to create one.")
			return nil
		}

		fmt.Fprintf(out, "Config file: %s\n\n", configFile)

		data, err := os.ReadFile(configFile)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		var cfg fileConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
		normalized, err := yaml.Marshal(&cfg)
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		fmt.Fprint(out, string(normalized))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
