package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/nethalo/utf8mb4-convert/internal/convert"
	"github.com/nethalo/utf8mb4-convert/internal/metrics"
	"github.com/nethalo/utf8mb4-convert/internal/mysql"
	"github.com/nethalo/utf8mb4-convert/internal/output"
	"github.com/nethalo/utf8mb4-convert/internal/topology"
)

// Replaced in tests.
var (
	connect        = mysql.Connect
	promptPassword = mysql.PromptPassword
	iamToken       = mysql.IAMToken
	stderrIsTTY    = func() bool { return term.IsTerminal(int(os.Stderr.Fd())) }
)

func runConvert(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	skip, _ := flags.GetStringArray("skip")
	limit, _ := flags.GetStringArray("limit")
	for _, s := range skip {
		if _, err := convert.ParseSkipSpec(s); err != nil {
			return fmt.Errorf("Invalid --skip %s", s)
		}
	}

	makeItSo, _ := flags.GetBool("make-it-so")
	forceLatin1, _ := flags.GetBool("force-latin1")
	bulkTable, _ := flags.GetBool("bulk-table")
	myisam, _ := flags.GetBool("myisam-to-innodb")

	opts, err := convert.NewOptions(convert.Settings{
		Skip:           skip,
		Limit:          limit,
		Collation:      viper.GetString("collation"),
		MakeItSo:       makeItSo,
		ForceLatin1:    forceLatin1,
		BulkTable:      bulkTable,
		MyISAMToInnoDB: myisam,
	})
	if err != nil {
		return err
	}

	summaryFormat, err := resolveSummaryFormat(viper.GetString("summary"))
	if err != nil {
		return err
	}

	ddlRate := viper.GetFloat64("ddl-rate")
	if ddlRate < 0 {
		return fmt.Errorf("--ddl-rate must not be negative")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	password, _ := flags.GetString("password")
	if password == promptSentinel {
		password = ""
	}
	connCfg, err := connectionConfig(ctx, password, flags.Changed("password"))
	if err != nil {
		return err
	}

	db, err := connect(ctx, connCfg)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer db.Close()

	log := convert.NewLogger(stdout, viper.GetBool("verbose"))
	runID := uuid.NewString()

	info, err := mysql.Preflight(ctx, db, opts.MakeItSo)
	if err != nil {
		return fmt.Errorf("preflight: %w", err)
	}
	if !info.Version.SupportsCollation(opts.Collation) {
		log.Warnf("server %s does not support collation %s; pass --collation", info.Version, opts.Collation)
	}

	var topo *topology.Info
	if opts.MakeItSo {
		topo = topology.Detect(ctx, db)
		for _, w := range topo.Warnings() {
			log.Warnf("%s", w)
		}
	}

	runner := convert.NewRunner(db, opts, stdout, log)
	runner.RunID = runID
	runner.Settings = map[string]any{
		"run_id":       runID,
		"host":         connCfg.Addr(),
		"user":         connCfg.User,
		"force_latin1": opts.ForceLatin1,
		"make_it_so":   opts.MakeItSo,
	}
	if ddlRate > 0 {
		runner.Limiter = rate.NewLimiter(rate.Limit(ddlRate), 1)
	}

	var recorder *metrics.Recorder
	metricsFile := viper.GetString("metrics-file")
	if metricsFile != "" {
		recorder = metrics.NewRecorder()
		runner.Recorder = recorder
	}

	report, runErr := runner.Run(ctx)

	output.NewRenderer(summaryFormat, stderr).RenderSummary(output.Summary{
		Addr:     connCfg.Addr(),
		Server:   info,
		Topology: topo,
		Report:   report,
		Err:      runErr,
	})

	if recorder != nil {
		var d time.Duration
		if report != nil {
			d = report.Duration
		}
		recorder.RunFinished(d, runErr)
		if err := recorder.WriteTextfile(metricsFile); err != nil {
			fmt.Fprintf(stderr, "utf8mb4-convert: writing metrics: %v\n", err)
		}
	}

	return runErr
}

// connectionConfig assembles connection parameters and resolves the password.
func connectionConfig(ctx context.Context, passwordFlag string, passwordFlagSet bool) (mysql.ConnectionConfig, error) {
	cfg := mysql.ConnectionConfig{
		Host:    viper.GetString("host"),
		Port:    viper.GetInt("port"),
		User:    viper.GetString("user"),
		Socket:  viper.GetString("socket"),
		TLSMode: viper.GetString("tls"),
		TLSCA:   viper.GetString("tls-ca"),
	}

	if viper.GetBool("rds-iam") {
		token, err := iamToken(ctx, cfg, viper.GetString("rds-region"))
		if err != nil {
			return cfg, fmt.Errorf("RDS IAM: %w", err)
		}
		return mysql.WithIAMToken(cfg, token), nil
	}

	password, err := mysql.ResolvePassword(mysql.PasswordSourceFromEnv(passwordFlag, passwordFlagSet), promptPassword)
	if err != nil {
		return cfg, err
	}
	cfg.Password = password
	return cfg, nil
}

var errSummaryFormat = errors.New("invalid --summary")

func resolveSummaryFormat(format string) (string, error) {
	switch format {
	case "", "auto":
		if stderrIsTTY() {
			return "text", nil
		}
		return "none", nil
	case "none", "text", "plain", "json", "markdown":
		return format, nil
	default:
		return "", fmt.Errorf("%w %q: valid values are auto, none, text, plain, json, markdown", errSummaryFormat, format)
	}
}
