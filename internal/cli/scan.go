package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mikepage/dns-monitor/internal/scanner"
)

var scanJSON bool

func runScan(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return scanner.ErrDomainRequired
	}
	domain := args[0]

	if !scanJSON {
		printBanner()
	}

	log := newLogger()
	if scanJSON {
		log.SetOutput(os.Stderr)
	}

	sc, hist := buildScanner(log)
	if hist != nil {
		defer hist.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := sc.Scan(ctx, domain, scanner.Options{
		Resolver: cfg.Resolver,
		DNSSEC:   cfg.DNSSEC,
		CT:       cfg.CT,
	})
	if err != nil {
		return err
	}

	if scanJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(result)
	return nil
}

func printResult(result *scanner.Result) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)

	bold.Printf("  %s", result.Domain)
	gray.Printf("  (%s, %dms)\n\n", result.Resolver, result.QueryTime)

	if result.Wildcard != nil && result.Wildcard.Detected {
		yellow.Println("  [!] Wildcard DNS detected - matching records were filtered")
		for _, target := range result.Wildcard.Targets {
			gray.Printf("      wildcard target: %s\n", target)
		}
		fmt.Println()
	}

	for _, rec := range result.Records {
		value, _ := json.Marshal(rec.Value)
		green.Printf("  %-24s", rec.Name)
		fmt.Printf(" %-6s %-6d %s\n", rec.Type, rec.TTL, string(value))
	}

	fmt.Println()
	bold.Printf("  %d records", result.TotalRecords)
	if result.DNSSEC != nil {
		if result.DNSSEC.Valid {
			green.Print("  DNSSEC: valid")
		} else {
			yellow.Print("  DNSSEC: not validated")
		}
	}
	if result.CT != nil {
		gray.Printf("  CT: %d certs, %d active, %d subdomains discovered",
			result.CT.TotalCertificates, result.CT.ActiveCertificates, result.CT.DiscoveredCount)
		if result.CT.Cached {
			gray.Print(" (cached)")
		}
	}
	fmt.Println()

	if len(result.Warnings) > 0 {
		fmt.Println()
		for _, warning := range result.Warnings {
			gray.Printf("  warn: %s\n", warning)
		}
	}
}
