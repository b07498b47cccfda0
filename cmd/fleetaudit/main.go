package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/fleetaudit/internal/classify"
	"github.com/HerbHall/fleetaudit/internal/config"
	"github.com/HerbHall/fleetaudit/internal/denylist"
	"github.com/HerbHall/fleetaudit/internal/directory"
	"github.com/HerbHall/fleetaudit/internal/fleet"
	"github.com/HerbHall/fleetaudit/internal/notify"
	"github.com/HerbHall/fleetaudit/internal/report"
	"github.com/HerbHall/fleetaudit/internal/retention"
	"github.com/HerbHall/fleetaudit/internal/scanner"
	"github.com/HerbHall/fleetaudit/internal/store"
	"github.com/HerbHall/fleetaudit/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	block := flag.Bool("block", false, "block matched clients (overrides block.enabled)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		os.Stdout.WriteString(version.Info() + "\n")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("fleetaudit: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.GetString("output.log_file"))
	if err != nil {
		os.Stderr.WriteString("fleetaudit: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	logger.Info("fleetaudit starting",
		zap.String("version", version.Short()),
		zap.String("org", cfg.GetString("org.id")))

	// Denylist
	rules, err := denylist.Load(cfg.GetString("denylist.macs"), cfg.GetString("denylist.companies"))
	if err != nil {
		logger.Fatal("failed to load denylist", zap.Error(err))
	}
	if rules.Empty() {
		logger.Warn("denylist is empty, no client can match")
	}

	// Vendor lookup, with an optional on-disk overlay
	vendor := classify.NewOUITable()
	if path := cfg.GetString("oui.file"); path != "" {
		if err := vendor.LoadFile(path); err != nil {
			logger.Fatal("failed to load OUI overlay", zap.Error(err), zap.String("path", path))
		}
	}

	// Remote directory
	dir := directory.NewClient(
		cfg.GetString("api.base_url"),
		cfg.GetString("api.key"),
		cfg.GetFloat64("api.rps"),
		logger,
	)

	// Per-network scanner
	sc := scanner.New(dir, rules, vendor, logger)
	sc.Lookback = time.Duration(cfg.GetInt("scan.lookback_days")) * 24 * time.Hour
	if n := cfg.GetInt("scan.block_workers"); n > 0 {
		sc.BlockWorkers = n
	}

	// Fleet orchestrator
	orch := fleet.New(dir, sc, logger)
	if n := cfg.GetInt("scan.workers"); n > 0 {
		orch.Workers = n
	}
	orch.Block = cfg.GetBool("block.enabled") || *block

	audit, err := orch.Run(ctx, cfg.GetString("org.id"))
	if err != nil {
		logger.Fatal("audit failed", zap.Error(err))
	}

	// Reports
	outDir := cfg.GetString("output.dir")
	reportPath, err := report.NewWriter(logger).Write(outDir, audit.Org, audit.Networks, audit.Results)
	if err != nil {
		logger.Fatal("failed to write reports", zap.Error(err))
	}

	elapsed := time.Since(start)

	// Run history
	if path := cfg.GetString("history.path"); path != "" {
		if err := recordRun(ctx, path, audit, reportPath, start); err != nil {
			logger.Error("failed to record run", zap.Error(err))
		}
	}

	// Summary mail
	mailer := notify.New(
		cfg.GetString("smtp.host"),
		cfg.GetString("smtp.from"),
		splitAddrs(cfg.GetString("smtp.to")),
		logger,
	)
	if err := mailer.SendSummary(notify.Summary{
		OrgName:        audit.Org.Name,
		NetworksTotal:  len(audit.Networks),
		NetworksFailed: audit.FailedCount(),
		BadClients:     audit.MatchCount(),
		Blocked:        audit.BlockedCount(),
		ReportPath:     reportPath,
		Elapsed:        elapsed,
	}); err != nil {
		logger.Error("failed to send summary mail", zap.Error(err))
	}

	// Retention
	if days := cfg.GetInt("retention.days"); days > 0 {
		sweeper := retention.NewSweeper(logger)
		maxAge := time.Duration(days) * 24 * time.Hour
		if err := sweeper.Purge(outDir, "*.csv", maxAge); err != nil {
			logger.Error("report sweep failed", zap.Error(err))
		}
		if logFile := cfg.GetString("output.log_file"); logFile != "" {
			if err := sweeper.Purge(filepath.Dir(logFile), "*.log", maxAge); err != nil {
				logger.Error("log sweep failed", zap.Error(err))
			}
		}
	}

	logger.Info("fleetaudit finished",
		zap.String("org", audit.Org.Name),
		zap.Int("networks", len(audit.Networks)),
		zap.Int("failed", audit.FailedCount()),
		zap.Int("bad_clients", audit.MatchCount()),
		zap.Int("blocked", audit.BlockedCount()),
		zap.String("report", reportPath),
		zap.Duration("elapsed", elapsed))
}

// buildLogger returns a production logger writing to stderr, plus the
// given file when one is configured.
func buildLogger(logFile string) (*zap.Logger, error) {
	if logFile == "" {
		return zap.NewProduction()
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stderr", logFile}
	return zc.Build()
}

func recordRun(ctx context.Context, path string, audit *fleet.Audit, reportPath string, started time.Time) error {
	db, err := store.New(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.InsertRun(ctx, &store.RunRecord{
		StartedAt:      started.UTC().Format(time.RFC3339),
		OrgID:          audit.Org.ID,
		OrgName:        audit.Org.Name,
		NetworksTotal:  len(audit.Networks),
		NetworksFailed: audit.FailedCount(),
		BadClients:     audit.MatchCount(),
		Blocked:        audit.BlockedCount(),
		ReportPath:     reportPath,
	})
}

func splitAddrs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
