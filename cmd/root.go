package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// promptSentinel is the value --password takes when given without one.
const promptSentinel = "<prompt>"

var rootCmd = &cobra.Command{
	Use:   "utf8mb4-convert",
	Short: "Generate and run the DDL that moves a MySQL server to utf8mb4",
	Long: `utf8mb4-convert finds databases, tables and columns still stored as
utf8/utf8mb3 (and optionally latin1) and prints the ALTER statements that
convert them to utf8mb4.

Nothing is changed unless --make-it-so is given. Output is plain SQL with
diagnostics as "--" comments, so it can be reviewed and replayed with the
mysql client.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runConvert,
}

const helpFooter = `
The --force-latin1 conversion assumes that only ASCII characters are in latin1
columns. Any international characters in latin1 columns will be corrupted.

If --password is not given, then no password is used.
The --password option may optionally specify the password, but putting
passwords on the command line is not recommended. Given without a value it
prompts. -psecret and --password=secret are equivalent. A non-empty
MYSQL_PWD overrides both.
`

// Execute is called by main.main(). It adds all child commands to the root
// command and sets flags appropriately.
func Execute() {
	rootCmd.SetArgs(expandPasswordShorthand(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "utf8mb4-convert: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Connection flags. -h is the host, so help is --help only. Declaring
	// it here stops cobra from adding its own -h shorthand.
	pf := rootCmd.PersistentFlags()
	pf.Bool("help", false, "help for utf8mb4-convert")
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.utf8mb4-convert/config.yaml)")
	pf.StringP("host", "h", "localhost", "MySQL host")
	pf.IntP("port", "P", 3306, "MySQL port")
	pf.StringP("user", "u", "root", "MySQL user")
	pf.StringP("password", "p", "", "MySQL password (will prompt if flag present without value)")
	pf.Lookup("password").NoOptDefVal = promptSentinel // -p without value prompts
	pf.StringP("socket", "S", "", "Unix socket path")
	pf.String("tls", "", "TLS mode: disabled, preferred, required, skip-verify, custom")
	pf.String("tls-ca", "", "CA certificate file for --tls=custom")
	pf.Bool("rds-iam", false, "Authenticate with an AWS RDS IAM token instead of a password")
	pf.String("rds-region", "", "AWS region for --rds-iam")
	pf.BoolP("verbose", "v", false, "Print queries, timings and progress as SQL comments")

	// Conversion flags.
	f := rootCmd.Flags()
	f.StringArray("skip", nil, "Skip a database, table or column: db[.table[.column]] (repeatable)")
	f.StringArray("limit", nil, "Only convert this database (repeatable)")
	f.Bool("make-it-so", false, "Execute the generated statements")
	f.Bool("force-latin1", false, "Also convert latin1 databases, tables and columns")
	f.Bool("bulk-table", false, "Convert each table with CONVERT TO instead of per-column MODIFY")
	f.Bool("myisam-to-innodb", false, "Move MyISAM tables to InnoDB first")
	f.String("collation", "", "Target utf8mb4 collation (default utf8mb4_0900_ai_ci)")
	f.String("summary", "auto", "Run summary on stderr: auto, none, text, plain, json, markdown")
	f.String("metrics-file", "", "Write Prometheus metrics for the run to this textfile")
	f.Float64("ddl-rate", 0, "Maximum executed statements per second (0 = unlimited)")

	rootCmd.SetUsageTemplate(rootCmd.UsageTemplate() + helpFooter)

	bindFlags()
}

// expandPasswordShorthand rewrites the mysql client form -psecret to
// --password=secret. pflag would otherwise read it as a cluster of boolean
// shorthands, since -p takes an optional value. Bare -p and -p=secret are
// left alone, as is everything after "--".
func expandPasswordShorthand(args []string) []string {
	out := make([]string, 0, len(args))
	for i, a := range args {
		if a == "--" {
			return append(out, args[i:]...)
		}
		if len(a) > 2 && strings.HasPrefix(a, "-p") && a[2] != '=' {
			a = "--password=" + a[2:]
		}
		out = append(out, a)
	}
	return out
}

// bindFlags binds the flags that may also come from the config file or
// UTF8MB4_CONVERT_* environment variables.
func bindFlags() {
	pf := rootCmd.PersistentFlags()
	for _, name := range []string{"host", "port", "user", "socket", "tls", "tls-ca", "rds-iam", "rds-region", "verbose"} {
		viper.BindPFlag(name, pf.Lookup(name))
	}
	for _, name := range []string{"collation", "summary", "metrics-file", "ddl-rate"} {
		viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}
}

// configKeys maps nested config file keys onto flag names.
var configKeys = map[string]string{
	"connection.host":    "host",
	"connection.port":    "port",
	"connection.user":    "user",
	"connection.socket":  "socket",
	"connection.tls":     "tls",
	"connection.tls_ca":  "tls-ca",
	"defaults.summary":   "summary",
	"defaults.collation": "collation",
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.AddConfigPath(home + "/.utf8mb4-convert")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("UTF8MB4_CONVERT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Silently ignore missing config file, it's optional
	if err := viper.ReadInConfig(); err == nil {
		// Only set these if the flags haven't been explicitly set by the user
		for key, flag := range configKeys {
			if !flagChanged(flag) && !envSet(flag) && viper.IsSet(key) {
				viper.Set(flag, viper.Get(key))
			}
		}
	}
}

func envSet(name string) bool {
	_, ok := os.LookupEnv("UTF8MB4_CONVERT_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")))
	return ok
}

func flagChanged(name string) bool {
	if f := rootCmd.PersistentFlags().Lookup(name); f != nil {
		return f.Changed
	}
	if f := rootCmd.Flags().Lookup(name); f != nil {
		return f.Changed
	}
	return false
}
