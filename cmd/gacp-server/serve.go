// cmd/gacp-server/serve.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"gacp-certification/internal/api"
	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/auth"
	"gacp-certification/internal/common/aws"
	"gacp-certification/internal/common/camunda"
	"gacp-certification/internal/common/config"
	commonhttp "gacp-certification/internal/common/http"
	"gacp-certification/internal/common/observability"
	"gacp-certification/internal/draft"
	"gacp-certification/internal/masterdata"
	"gacp-certification/internal/preview"
	"gacp-certification/internal/session"

	"github.com/spf13/cobra"
)

var withWorkers bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the wizard and staff HTTP API",
	Long: `Starts the HTTP API. With --workers (the default) the job workers of
the certification process run in the same process.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&withWorkers, "workers", true, "Also run the job workers")
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (rt *runtime) documentStore(ctx context.Context) (api.DocumentStore, error) {
	sc := rt.cfg.Storage
	if sc.Bucket == "" {
		rt.log.Warn("document storage not configured, uploads disabled", nil)
		return nil, nil
	}
	awsCfg, err := aws.LoadConfig(ctx, sc.Region)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return aws.NewDocumentStore(awsCfg, aws.DocumentStoreConfig{
		Bucket:        sc.Bucket,
		Region:        sc.Region,
		KeyPrefix:     sc.KeyPrefix,
		PublicBaseURL: sc.PublicBaseURL,
	}), nil
}

func (rt *runtime) staffAuth() auth.TokenValidator {
	kc := rt.cfg.Auth.Keycloak
	if kc.URL == "" {
		rt.log.Warn("keycloak not configured, staff routes will reject every request", nil)
		return nil
	}
	return auth.NewKeycloakClient(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret)
}

func (rt *runtime) readinessChecks() map[string]api.ReadinessCheck {
	checks := map[string]api.ReadinessCheck{
		"postgres": rt.pg.Ping,
		"redis":    rt.redis.Ping,
		"zeebe":    rt.zeebe.HealthCheck,
	}
	if rt.es != nil {
		checks["elasticsearch"] = rt.es.Ping
	}
	return checks
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.cfg
	log := rt.log

	log.Info("Starting GACP certification service...", map[string]interface{}{
		"address":     cfg.Server.Address,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.App.Name, cfg.Observability.JaegerEndpoint, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		obs.Shutdown(shutdownCtx)
	}()

	if err := rt.connectPostgres(ctx); err != nil {
		return err
	}
	if err := rt.connectRedis(ctx); err != nil {
		return err
	}
	if err := rt.connectElasticsearch(ctx); err != nil {
		return err
	}
	if err := rt.connectZeebe(ctx); err != nil {
		return err
	}

	// --- Applications and submission ---
	repo := applications.NewRepository(rt.pg.DB)
	var appOpts []applications.ServiceOption
	if rt.es != nil {
		appOpts = append(appOpts, applications.WithSearch(
			applications.NewSearch(rt.es, cfg.Database.Elasticsearch.ApplicationIndex)))
	}
	appSvc, err := applications.NewService(repo, rt.zeebe, cfg.Camunda.ProcessID, log, appOpts...)
	if err != nil {
		return err
	}

	// --- Wizard sessions ---
	drafts := draft.NewStore(rt.redis.Client, cfg.Wizard.StorageKey, seconds(cfg.Wizard.DraftTTL), log)
	sessions := session.NewManager(drafts, appSvc, session.Config{
		Debounce: cfg.Wizard.Debounce(),
		IdleTTL:  seconds(cfg.Wizard.SessionIdleTTL),
	}, log, session.WithObservability(obs))
	go sessions.Run(ctx)

	// --- Supporting services ---
	md := masterdata.NewService(
		commonhttp.NewClient(config.GetDuration(cfg.MasterData.Timeout)),
		rt.redis.Client,
		masterdata.Config{
			BaseURL:  cfg.MasterData.BaseURL,
			Timeout:  config.GetDuration(cfg.MasterData.Timeout),
			CacheTTL: seconds(cfg.MasterData.CacheTTL),
		},
		log,
	)
	previews, err := preview.NewRenderer()
	if err != nil {
		return fmt.Errorf("load preview templates: %w", err)
	}
	documents, err := rt.documentStore(ctx)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.Deps{
		Sessions:       sessions,
		Applications:   appSvc,
		MasterData:     md,
		Previews:       previews,
		Documents:      documents,
		Auth:           rt.staffAuth(),
		Checks:         rt.readinessChecks(),
		Logger:         log,
		StaffRoles:     cfg.Auth.StaffRoles,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
	})

	// --- Job workers ---
	var workers []*camunda.Worker
	if withWorkers {
		deps, err := rt.workerDeps(ctx)
		if err != nil {
			return err
		}
		if workers, err = rt.startWorkers(deps); err != nil {
			stopWorkers(context.Background(), workers)
			return err
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received", nil)
	case runErr = <-serveErr:
		if runErr != nil {
			log.Error("HTTP server failed", map[string]interface{}{"error": runErr.Error()})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	stopWorkers(shutdownCtx, workers)
	sessions.Close()
	log.Info("GACP certification service stopped", nil)
	return runErr
}
