package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mikepage/dns-monitor/internal/cache"
	"github.com/mikepage/dns-monitor/internal/config"
	"github.com/mikepage/dns-monitor/internal/ctlog"
	"github.com/mikepage/dns-monitor/internal/history"
	"github.com/mikepage/dns-monitor/internal/scanner"
	"github.com/mikepage/dns-monitor/internal/version"
)

var (
	cfg        = *config.DefaultConfig()
	configPath string

	rootCmd = &cobra.Command{
		Use:   "dnsmon [domain]",
		Short: "DNS footprint reconnaissance",
		Long: `dnsmon - DNS footprint reconnaissance over DNS-over-HTTPS.

Scans a domain's conventional subdomains across all common record types,
detects wildcard DNS, and expands the query set from Certificate
Transparency logs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScan,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.dnsmon/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path for CT cache and scan history")
	rootCmd.PersistentFlags().IntVar(&cfg.QueryTimeout, "timeout", cfg.QueryTimeout, "Per-query timeout in seconds")
	rootCmd.PersistentFlags().IntVar(&cfg.QueryRate, "rate", cfg.QueryRate, "Outbound queries per second (0 = unlimited)")
	rootCmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")

	rootCmd.Flags().StringVarP(&cfg.Resolver, "resolver", "r", cfg.Resolver, "DNS-over-HTTPS resolver (google, cloudflare)")
	rootCmd.Flags().BoolVar(&cfg.DNSSEC, "dnssec", false, "Request DNSSEC validation status")
	rootCmd.Flags().BoolVar(&cfg.CT, "ct", false, "Discover subdomains from Certificate Transparency logs")
	rootCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the raw JSON result")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	cobra.OnInitialize(loadConfigFile)
	return rootCmd.Execute()
}

// loadConfigFile layers the YAML config under any flags the user set.
func loadConfigFile() {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if path == "" {
		return
	}
	fileCfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
		return
	}
	merged := *fileCfg
	// Flags win over file values.
	if rootCmd.PersistentFlags().Changed("db") {
		merged.DBPath = cfg.DBPath
	}
	if rootCmd.PersistentFlags().Changed("timeout") {
		merged.QueryTimeout = cfg.QueryTimeout
	}
	if rootCmd.PersistentFlags().Changed("rate") {
		merged.QueryRate = cfg.QueryRate
	}
	if rootCmd.PersistentFlags().Changed("debug") {
		merged.Debug = cfg.Debug
	}
	if rootCmd.Flags().Changed("resolver") {
		merged.Resolver = cfg.Resolver
	}
	if rootCmd.Flags().Changed("dnssec") {
		merged.DNSSEC = cfg.DNSSEC
	}
	if rootCmd.Flags().Changed("ct") {
		merged.CT = cfg.CT
	}
	cfg = merged
}

// newLogger builds the process logger.
func newLogger() *logrus.Logger {
	log := logrus.New()
	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// buildScanner wires the cache store, CT discoverer and history store.
// Persistence failures degrade to the in-memory cache and no history.
func buildScanner(log *logrus.Logger) (*scanner.Scanner, *history.Store) {
	var store cache.Store
	var hist *history.Store

	if cfg.DBPath != "" {
		if s, err := cache.NewSQLite(cfg.DBPath); err == nil {
			store = s
		} else {
			log.Warnf("cache database unavailable, using in-memory cache: %v", err)
		}
		if h, err := history.New(cfg.DBPath); err == nil {
			hist = h
		} else {
			log.Warnf("scan history unavailable: %v", err)
		}
	}
	if store == nil {
		store = cache.NewMemory()
	}

	ct := ctlog.New(store, cfg.CTLogURL, log)
	return scanner.New(&cfg, ct, log), hist
}

func printBanner() {
	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)

	cyan.Print(`
       __
  ____/ /___  _________ ___  ____  ____
 / __  / __ \/ ___/ __ '__ \/ __ \/ __ \
/ /_/ / / / (__  ) / / / / / /_/ / / / /
\__,_/_/ /_/____/_/ /_/ /_/\____/_/ /_/
`)
	gray.Printf("  DNS footprint reconnaissance v%s\n\n", version.Short())
}
