package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/market"
	"github.com/wonny/marketscan/backend/internal/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [universe]",
	Short: "Run one synchronous scan and print the alerts",
	Long: `Scans a universe once and prints the alerts it produced.

Without an argument the DEFAULT_UNIVERSE is scanned. Outside regular trading
hours the scan is skipped unless --ignore-hours is set.

Example:
  go run ./cmd/marketscan scan
  go run ./cmd/marketscan scan TECH_USA --ignore-hours`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

var scanIgnoreHours bool

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanIgnoreHours, "ignore-hours", false, "scan even when the market is closed")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, err := loadCore(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	var clock contracts.MarketClock = c.calendar
	if scanIgnoreHours {
		clock = market.AlwaysOpen
	}

	svc, err := c.newService(clock)
	if err != nil {
		return err
	}

	universeID := ""
	if len(args) == 1 {
		universeID = strings.ToUpper(strings.TrimSpace(args[0]))
	}

	result, err := svc.Scan(ctx, universeID)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	printScanResult(result)
	return nil
}

func printScanResult(r scanner.Result) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Scan %s\n", r.UniverseID)
	fmt.Println("───────────────────────────────────────────────────────────")

	if r.Skipped {
		fmt.Println("  Market closed, scan skipped (use --ignore-hours)")
		fmt.Println("═══════════════════════════════════════════════════════════")
		return
	}

	fmt.Printf("  Scan ID   : %s\n", r.ScanID)
	fmt.Printf("  Symbols   : %d requested, %d fetched, %d failed\n", r.Requested, r.Fetched, r.Failed)
	fmt.Printf("  Duration  : %s\n", r.Duration.Round(time.Millisecond))
	fmt.Printf("  Alerts    : %d (%d high)\n", len(r.Alerts), contracts.CountHigh(r.Alerts))
	fmt.Println("───────────────────────────────────────────────────────────")

	if len(r.Alerts) == 0 {
		fmt.Println("  No symbol crossed the alert threshold")
	}
	for _, a := range r.Alerts {
		marker := "  "
		if a.IsHigh() {
			marker = "🔥"
		}
		arrow := "▼"
		if a.IsUp() {
			arrow = "▲"
		}
		fmt.Printf("  %s %s %-8s %10.2f  %+8.2f  %+7.2f%%  vol %d\n",
			marker, arrow, a.Symbol, a.Price, a.Change, a.ChangePercent, a.Volume)
	}
	fmt.Println("═══════════════════════════════════════════════════════════")
}
