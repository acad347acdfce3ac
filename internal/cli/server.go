package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mikepage/dns-monitor/internal/server"
)

var (
	serverPort   int
	serverHost   string
	serverAPIKey string
	serverGenKey bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server for running scans over REST.

Endpoints:
  GET /api/scan?domain=example.com&resolver=google&dnssec=true&ct=true
  GET /api/history
  GET /api/version
  GET /health

Security features:
  - Rate limiting (100 requests/minute per IP)
  - CORS protection and security headers
  - Optional API key authentication

Examples:
  # Start with default settings (localhost:8880)
  dnsmon server

  # Allow external connections
  dnsmon server --host 0.0.0.0 --port 9000

  # Require an API key
  dnsmon server --gen-key`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 8880, "Server port")
	serverCmd.Flags().StringVarP(&serverHost, "host", "H", "127.0.0.1", "Server host (use 0.0.0.0 for all interfaces)")
	serverCmd.Flags().StringVar(&serverAPIKey, "api-key", "", "API key protecting the scan endpoints")
	serverCmd.Flags().BoolVar(&serverGenKey, "gen-key", false, "Generate a random API key")
}

func runServer(cmd *cobra.Command, args []string) error {
	printBanner()

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	apiKey := serverAPIKey
	if apiKey == "" && serverGenKey {
		apiKey = server.GenerateAPIKey()
		green.Println("  Authentication enabled")
		green.Printf("  API Key: %s\n", apiKey)
		yellow.Println("  Save this key - it won't be shown again!")
		fmt.Println()
	}

	log := newLogger()
	sc, hist := buildScanner(log)
	if hist != nil {
		defer hist.Close()
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Port = serverPort
	srvCfg.Host = serverHost
	srvCfg.APIKey = apiKey
	srvCfg.Debug = cfg.Debug
	srvCfg.ScanConfig = &cfg
	srvCfg.AllowedOrigins = []string{
		fmt.Sprintf("http://localhost:%d", serverPort),
		fmt.Sprintf("http://127.0.0.1:%d", serverPort),
	}

	cyan.Printf("  Listening on http://%s:%d\n\n", serverHost, serverPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.New(srvCfg, sc, hist, log).Run(ctx)
}
