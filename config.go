package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind          string
	minGroupSize  int
	nameDelay     time.Duration
	oracleURL     string
	port          int
	prefix        string
	profile       bool
	queryDelay    time.Duration
	retryBackoff  time.Duration
	tlsCert       string
	tlsKey        string
	verbose       bool
	verifyRetries int
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if _, err := url.ParseRequestURI(c.oracleURL); err != nil {
		return fmt.Errorf("invalid oracle url %q: %w", c.oracleURL, err)
	}
	if c.verifyRetries < 0 {
		return fmt.Errorf("invalid verify retry count: %d", c.verifyRetries)
	}
	if c.minGroupSize < 1 {
		return fmt.Errorf("invalid minimum group size: %d", c.minGroupSize)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BRAINSTORM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "brainstorm",
		Short:         "Classroom celebrity-name game server with Wikipedia-backed verification.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: BRAINSTORM_BIND)")
	fs.IntVar(&cfg.minGroupSize, "min-group-size", 4, "minimum number of members per group (env: BRAINSTORM_MIN_GROUP_SIZE)")
	fs.DurationVar(&cfg.nameDelay, "name-delay", 600*time.Millisecond, "pause between verified names in a batch (env: BRAINSTORM_NAME_DELAY)")
	fs.StringVar(&cfg.oracleURL, "oracle-url", "https://he.wikipedia.org/w/api.php", "MediaWiki search API endpoint (env: BRAINSTORM_ORACLE_URL)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: BRAINSTORM_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: BRAINSTORM_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: BRAINSTORM_PROFILE)")
	fs.DurationVar(&cfg.queryDelay, "query-delay", 150*time.Millisecond, "pause between oracle queries for one name (env: BRAINSTORM_QUERY_DELAY)")
	fs.DurationVar(&cfg.retryBackoff, "retry-backoff", 2*time.Second, "wait before retrying a failed verification (env: BRAINSTORM_RETRY_BACKOFF)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: BRAINSTORM_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: BRAINSTORM_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: BRAINSTORM_VERBOSE)")
	fs.IntVar(&cfg.verifyRetries, "verify-retries", 3, "full classification retries before giving up (env: BRAINSTORM_VERIFY_RETRIES)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: BRAINSTORM_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("brainstorm v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
