package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/marketscan/backend/internal/api"
	"github.com/wonny/marketscan/backend/internal/api/handlers"
	"github.com/wonny/marketscan/backend/internal/external/groq"
	"github.com/wonny/marketscan/backend/internal/history"
	"github.com/wonny/marketscan/backend/internal/insight"
	"github.com/wonny/marketscan/backend/internal/realtime"
	"github.com/wonny/marketscan/backend/internal/scanner"
	"github.com/wonny/marketscan/backend/internal/scheduler"
	"github.com/wonny/marketscan/backend/internal/scheduler/jobs"
	"github.com/wonny/marketscan/backend/pkg/httputil"
	"github.com/wonny/marketscan/backend/pkg/redis"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server, alert stream and scan scheduler",
	Long: `Starts the HTTP API, the websocket alert stream and the scheduler.

On start:
- snapshots mirrored in Redis are loaded into the cache
- the active universe is scanned once (skip with --no-warmup)
- SCAN_UNIVERSES are scanned round-robin every SCAN_INTERVAL minutes

Endpoints:
  GET  /health
  GET  /api/alerts?universe=ID
  GET  /api/alerts/status?universe=ID
  POST /api/alerts/refresh
  GET  /api/alerts/history?universe=ID&limit=N   (DATABASE_URL only)
  GET  /api/universes[/{id}]
  PUT  /api/universes/{id}
  POST /api/universes/custom
  POST /api/universes/scanner/universe
  POST /api/ai/chat
  GET  /api/ai/insight
  POST /api/ai/insight/refresh
  GET  /ws/alerts

Example:
  go run ./cmd/marketscan serve
  go run ./cmd/marketscan serve --port 8080 --no-warmup`,
	RunE: runServe,
}

var (
	servePort     string
	serveNoWarmup bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Flags
	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (default PORT)")
	serveCmd.Flags().BoolVar(&serveNoWarmup, "no-warmup", false, "skip the initial scan of the active universe")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := loadCore(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	cfg, log := c.cfg, c.log
	if servePort != "" {
		cfg.Port = servePort
	}

	log.WithFields(map[string]interface{}{
		"port":     cfg.Port,
		"env":      cfg.Env,
		"provider": cfg.QuoteProvider,
		"redis":    c.redis.Enabled(),
		"database": c.db != nil,
	}).Info("Initializing marketscan")

	// 1. Scanner service
	svc, err := c.newService(c.calendar)
	if err != nil {
		return err
	}

	// 2. Redis snapshot mirror
	cache := c.cache()
	mirror := scanner.NewMirror(cache, log)
	if n := mirror.Hydrate(ctx, svc.Cache(), c.registry.IDs()); n > 0 {
		log.WithField("universes", n).Info("Cache hydrated from mirror")
	}
	svc.Subscribe(mirror.Save)

	// 3. Alert history (optional)
	var hist *history.Repository
	if c.db != nil {
		hist, err = history.NewRepository(ctx, c.db, log)
		if err != nil {
			return err
		}
		svc.Subscribe(hist.Record)
	}

	// 4. Websocket hub
	hub := realtime.NewHub(svc.GetAlerts, log)
	svc.Subscribe(hub.Publish)
	defer hub.Close()

	// 5. Assistant
	llmHTTP := httputil.NewWithTimeout(log, 30*time.Second).
		WithRateLimiter(c.limiter(), redis.GroqRateLimit)
	llm := groq.NewClient(llmHTTP, cfg.Groq.APIKey, cfg.Groq.BaseURL, log)
	if !llm.Configured() {
		log.Warn("GROQ_API_KEY not set, assistant answers with fallback text")
	}
	assistant := insight.NewAssistant(llm, cfg.Groq.ChatModel, log)
	daily := insight.NewDailyService(llm, cfg.Groq.InsightModel, cache, log)

	// 6. Scheduler
	rotation, err := jobs.NewRotation(cfg.Scanner.Universes)
	if err != nil {
		return err
	}
	for _, id := range rotation.IDs() {
		if !c.registry.Exists(id) {
			return fmt.Errorf("SCAN_UNIVERSES: unknown universe %s", id)
		}
	}

	sched := scheduler.New(log)
	scanJob := jobs.NewScanRotationJob(svc, rotation, cfg.Scanner.Interval, log)
	schedJobs := []scheduler.Job{
		scanJob,
		jobs.NewInsightRefreshJob(daily, cfg.Groq.InsightLangs, log),
	}
	if hist != nil {
		schedJobs = append(schedJobs, jobs.NewHistoryCleanupJob(hist, cfg.HistoryRetention, log))
	}
	for _, job := range schedJobs {
		if err := sched.AddJob(job); err != nil {
			return fmt.Errorf("register job %s: %w", job.Name(), err)
		}
	}

	// 7. HTTP API
	router := api.NewRouter(api.Handlers{
		Alerts:    handlers.NewAlertHandler(svc, historyReader(hist), log),
		Universes: handlers.NewUniverseHandler(c.registry, svc, log),
		AI:        handlers.NewAIHandler(assistant, daily, svc, log),
		WS:        hub.ServeWS,
		History:   hist != nil,
	}, log)
	server := api.New(cfg, log, router)

	// 8. Warmup scan, then run until a signal arrives
	if !serveNoWarmup {
		scanJob.Warmup(ctx)
	}

	sched.Start()
	for _, name := range sched.GetAllJobs() {
		if next, ok := sched.NextRun(name); ok {
			log.WithFields(map[string]interface{}{
				"job":      name,
				"next_run": next.Format(time.RFC3339),
			}).Info("Job scheduled")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop()
		for name, stats := range sched.GetJobStats() {
			log.WithFields(map[string]interface{}{
				"job":          name,
				"runs":         stats.TotalRuns,
				"success_rate": stats.SuccessRate,
			}).Info("Job summary")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	fmt.Printf("\n✅ marketscan running on http://localhost:%s (Ctrl+C to stop)\n", cfg.Port)

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("marketscan stopped")
	return nil
}

// historyReader keeps a nil repository from becoming a non-nil interface
func historyReader(hist *history.Repository) handlers.HistoryReader {
	if hist == nil {
		return nil
	}
	return hist
}
