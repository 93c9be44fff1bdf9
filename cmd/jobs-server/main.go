// Command jobs-server runs the market-data ingestion jobs behind an HTTP
// trigger surface.
package main

import (
	"context"
	"os"
	"time"

	"github.com/Aiuser8/defi-alive-jobs/internal/config"
	"github.com/Aiuser8/defi-alive-jobs/internal/job"
	"github.com/Aiuser8/defi-alive-jobs/internal/logging"
	"github.com/Aiuser8/defi-alive-jobs/internal/marketdata"
	"github.com/Aiuser8/defi-alive-jobs/internal/server"
	"github.com/Aiuser8/defi-alive-jobs/internal/store"
	"github.com/Aiuser8/defi-alive-jobs/internal/warehouse"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger config may itself be missing; use a default logger for the
		// fail-fast path.
		logging.New("info", "text").Fatalf("configuration error: %v", err)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := store.New(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns))
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		log.Fatalf("store unreachable: %v", err)
	}

	catalog, err := warehouse.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	defer catalog.Close()

	clientCfg := marketdata.DefaultClientConfig()
	clientCfg.BaseURL = cfg.MarketDataAPIURL
	clientCfg.APIKey = cfg.MarketDataAPIKey
	clientCfg.RateLimit = cfg.APIRateLimit
	clientCfg.GroupSize = cfg.APIGroupSize
	client := marketdata.NewClient(clientCfg)

	jobs, err := job.NewSet(job.SetConfig{
		Client:      client,
		Store:       st,
		Candidates:  catalog,
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.MaxConcurrency,
		Log:         log,
	})
	if err != nil {
		log.Fatalf("job wiring: %v", err)
	}

	log.WithField("jobs", jobs.Names()).Infof("listening on %s", cfg.Address)

	srv := server.New(jobs, st, catalog, log)
	if err := srv.Router().Run(cfg.Address); err != nil {
		log.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
}
