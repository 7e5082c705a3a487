package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-force-assess/internal/agent"
	"ai-force-assess/internal/config"
	"ai-force-assess/internal/datastore"
	"ai-force-assess/internal/orchestration"
)

// Options override the file/env configuration for one server run.
type Options struct {
	ConfigDir string
	Addr      string
	Mock      bool
}

// Run wires the data store, crews, and orchestrator together and serves the
// REST API until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.LoadServerConfig(opts.ConfigDir)
	if err != nil {
		return fmt.Errorf("loading server config: %w", err)
	}
	if opts.Addr != "" {
		cfg.ListenAddr = opts.Addr
	}

	storeCfg := config.GetDataStoreConfig()
	if opts.Mock {
		storeCfg = datastore.Config{Type: datastore.MockStore}
	}
	ds, err := datastore.NewDataStore(storeCfg)
	if err != nil {
		return fmt.Errorf("connecting data store: %w", err)
	}
	defer ds.Close()

	var ag agent.Agent
	if apiKey := config.GetAPIKey(); apiKey != "" {
		gemini, err := agent.NewGeminiAgent(ctx, apiKey)
		if err != nil {
			return fmt.Errorf("creating Gemini agent: %w", err)
		}
		ag = gemini
	} else {
		log.Println("no Gemini API key set, crews run on the mock agent")
		ag = agent.NewMockAgent()
	}
	defer ag.Close()

	orch := orchestration.NewOrchestrator(ds)
	orchestration.NewCrewExecutor(ds, ag).Register(orch)
	trigger := orchestration.NewAutoTrigger(orch).
		WithInterval(cfg.PollerInterval).
		WithAttempts(cfg.PollerAttempts)

	gin.SetMode(gin.ReleaseMode)
	srv := newServer(orch, trigger, cfg)

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting assess API server on %s (store: %s)", cfg.ListenAddr, storeCfg.Type)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
