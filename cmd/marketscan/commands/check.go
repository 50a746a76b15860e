package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/marketscan/backend/internal/external/provider"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration, stores and the quote provider",
	Long: `Loads the configuration and reports on every dependency.

This command:
- loads config from the environment / .env
- pings Redis and PostgreSQL when configured
- prints the market status
- fetches one quote from the configured provider (--symbol)

Example:
  go run ./cmd/marketscan check
  go run ./cmd/marketscan check --symbol MSFT`,
	RunE: runCheck,
}

var checkSymbol string

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkSymbol, "symbol", "AAPL", "symbol used to probe the quote provider")
}

func runCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== marketscan dependency check ===")

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	c, err := loadCore(ctx)
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}
	defer c.Close()
	cfg := c.cfg
	fmt.Printf("✅ Config loaded (ENV: %s, provider: %s)\n", cfg.Env, cfg.QuoteProvider)

	// Redis
	if c.redis.Enabled() {
		if err := c.redis.Ping(ctx); err != nil {
			return fmt.Errorf("❌ Redis ping failed: %w", err)
		}
		fmt.Printf("✅ Redis reachable (%s:%s)\n", cfg.Redis.Host, cfg.Redis.Port)
	} else {
		fmt.Println("➖ Redis disabled")
	}

	// PostgreSQL
	if c.db != nil {
		status, err := c.db.HealthCheck(ctx)
		if err != nil {
			return fmt.Errorf("❌ Database health check failed: %w", err)
		}
		fmt.Printf("✅ Database healthy (%s, %v)\n", maskDatabaseURL(cfg.Database.URL), status.ResponseTime)
		fmt.Printf("   Pool: %d/%d conns, %d idle\n", status.Stats.TotalConns, status.Stats.MaxConns, status.Stats.IdleConns)
	} else {
		fmt.Println("➖ Database not configured")
	}

	// Universes
	fmt.Printf("✅ %d universes loaded (store: %s)\n", len(c.registry.IDs()), cfg.Universe.Store)

	// Market
	status := c.calendar.Status(time.Now())
	fmt.Printf("🕒 %s (%s %s)\n", status.Message, status.CurrentTime, status.Timezone)

	// Quote provider
	source, err := provider.New(cfg, c.limiter(), c.log)
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}
	symbol := strings.ToUpper(strings.TrimSpace(checkSymbol))
	q, err := source.FetchQuote(ctx, symbol)
	if err != nil {
		return fmt.Errorf("❌ %s quote for %s failed: %w", source.Name(), symbol, err)
	}
	fmt.Printf("✅ %s: %s %.2f (%+.2f%%)\n", source.Name(), q.Symbol, q.Price, q.ChangePercent())

	return nil
}

// maskDatabaseURL hides the password of a connection URL
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
