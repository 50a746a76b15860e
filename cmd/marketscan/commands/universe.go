package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/marketscan/backend/internal/universe"
	"github.com/wonny/marketscan/backend/pkg/httputil"
)

// universeCmd represents the universe command group
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Inspect and edit stock universes",
	Long: `Lists universes and manages their persisted symbol overrides.

Subcommands:
  list        - every universe with its symbol count
  show        - the effective symbols of one universe
  set         - replace the symbols of one universe
  seed-sp100  - scrape the S&P 100 constituents into SP100

Example:
  go run ./cmd/marketscan universe list
  go run ./cmd/marketscan universe show TECH_USA
  go run ./cmd/marketscan universe set CUSTOM AAPL MSFT NVDA
  go run ./cmd/marketscan universe seed-sp100`,
}

var (
	universeListCmd = &cobra.Command{
		Use:   "list",
		Short: "List universes",
		Args:  cobra.NoArgs,
		RunE:  runUniverseList,
	}

	universeShowCmd = &cobra.Command{
		Use:   "show [universe]",
		Short: "Show the symbols of a universe",
		Args:  cobra.ExactArgs(1),
		RunE:  runUniverseShow,
	}

	universeSetCmd = &cobra.Command{
		Use:   "set [universe] [symbols...]",
		Short: "Replace the symbols of a universe",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runUniverseSet,
	}

	universeSeedCmd = &cobra.Command{
		Use:   "seed-sp100",
		Short: "Scrape S&P 100 constituents into the SP100 universe",
		Args:  cobra.NoArgs,
		RunE:  runUniverseSeed,
	}
)

func init() {
	rootCmd.AddCommand(universeCmd)

	universeCmd.AddCommand(universeListCmd)
	universeCmd.AddCommand(universeShowCmd)
	universeCmd.AddCommand(universeSetCmd)
	universeCmd.AddCommand(universeSeedCmd)
}

func runUniverseList(cmd *cobra.Command, args []string) error {
	c, err := loadCore(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Println()
	fmt.Printf("  %-12s %-22s %8s  %s\n", "ID", "NAME", "SYMBOLS", "DESCRIPTION")
	fmt.Println("───────────────────────────────────────────────────────────")
	for _, u := range c.registry.All(cmd.Context()) {
		fmt.Printf("  %-12s %-22s %4d/%-3d  %s\n", u.ID, u.Name, u.SymbolsCount, u.MaxSymbols, u.Description)
	}
	return nil
}

func runUniverseShow(cmd *cobra.Command, args []string) error {
	c, err := loadCore(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	u, err := c.registry.Get(cmd.Context(), strings.ToUpper(strings.TrimSpace(args[0])))
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  %s - %s\n", u.ID, u.Name)
	fmt.Printf("  %s\n", u.Description)
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  %d/%d symbols\n", len(u.Symbols), u.MaxSymbols)
	printSymbols(u.Symbols)
	return nil
}

func runUniverseSet(cmd *cobra.Command, args []string) error {
	c, err := loadCore(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	id := strings.ToUpper(strings.TrimSpace(args[0]))
	saved, err := c.registry.Update(cmd.Context(), id, args[1:])
	if err != nil {
		return err
	}

	fmt.Printf("\n✅ %s now has %d symbols\n", id, len(saved))
	printSymbols(saved)
	return nil
}

func runUniverseSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, err := loadCore(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	scraper := universe.NewSP100Scraper(httputil.New(c.log), c.cache(), c.log)
	symbols, err := scraper.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("scrape S&P 100: %w", err)
	}

	def, err := c.registry.Get(ctx, universe.SP100)
	if err != nil {
		return err
	}
	// the index lists both share classes of some members
	if len(symbols) > def.MaxSymbols {
		symbols = symbols[:def.MaxSymbols]
	}

	saved, err := c.registry.Update(ctx, universe.SP100, symbols)
	if err != nil {
		return err
	}

	fmt.Printf("\n✅ SP100 seeded with %d symbols\n", len(saved))
	printSymbols(saved)
	return nil
}

// printSymbols prints ten symbols per line
func printSymbols(symbols []string) {
	for i := 0; i < len(symbols); i += 10 {
		end := i + 10
		if end > len(symbols) {
			end = len(symbols)
		}
		fmt.Printf("  %s\n", strings.Join(symbols[i:end], " "))
	}
}
