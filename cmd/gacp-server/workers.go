// cmd/gacp-server/workers.go
package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/aws"
	"gacp-certification/internal/common/camunda"
	"gacp-certification/internal/common/config"
	"gacp-certification/pkg/registry"

	cpr "gacp-certification/internal/workers/application/check-priority-routing"
	crs "gacp-certification/internal/workers/application/check-readiness-score"
	ia "gacp-certification/internal/workers/application/index-application"
	sn "gacp-certification/internal/workers/application/send-notification"
	uas "gacp-certification/internal/workers/application/update-application-status"
	vad "gacp-certification/internal/workers/application/validate-application-data"

	"github.com/spf13/cobra"
)

var registryPath string

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Run the certification process job workers",
	Long: `Opens a Zeebe job subscription for every enabled task type of the
certification process and runs until interrupted.`,
	RunE: runWorkers,
}

var workersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the known task types and whether they are enabled",
	RunE:  listWorkers,
}

func init() {
	workersListCmd.Flags().StringVar(&registryPath, "registry", "", "Activity registry JSON (default: built-in)")
	workersCmd.AddCommand(workersListCmd)
}

// workerDeps are the services the job handlers run against. search, email
// and sms may be nil.
type workerDeps struct {
	repo   *applications.Repository
	search *applications.Search
	email  sn.EmailSender
	sms    sn.SMSSender
}

func workerTimeout(wcfg config.WorkerConfig) time.Duration {
	return config.GetDuration(wcfg.Timeout)
}

func routingRules(cfg *config.Config) []cpr.Rule {
	if len(cfg.Routing.Rules) == 0 {
		return cpr.DefaultRules
	}
	rules := make([]cpr.Rule, 0, len(cfg.Routing.Rules))
	for _, r := range cfg.Routing.Rules {
		rules = append(rules, cpr.Rule{Name: r.Name, When: r.When, Priority: r.Priority, Queue: r.Queue})
	}
	return rules
}

// startWorkers registers every enabled job worker on the Zeebe client.
func (rt *runtime) startWorkers(deps workerDeps) ([]*camunda.Worker, error) {
	cfg := rt.cfg
	zb := rt.zeebe.GetClient()
	var started []*camunda.Worker

	add := func(w *camunda.Worker) {
		if w != nil {
			started = append(started, w)
		}
	}

	if wcfg := config.GetWorkerConfig(cfg, vad.TaskType); wcfg.Enabled {
		handler, err := vad.NewHandler(&vad.Config{Timeout: workerTimeout(wcfg), RequireContact: true}, deps.repo, rt.log)
		if err != nil {
			return started, fmt.Errorf("create %s handler: %w", vad.TaskType, err)
		}
		add(camunda.StartWorker(zb, vad.TaskType, wcfg, handler.Handle, rt.log))
	}

	if wcfg := config.GetWorkerConfig(cfg, crs.TaskType); wcfg.Enabled {
		handler := crs.NewHandler(&crs.Config{Timeout: workerTimeout(wcfg), ReadyScore: crs.LoadConfig().ReadyScore}, deps.repo, nil, rt.log)
		add(camunda.StartWorker(zb, crs.TaskType, wcfg, handler.Handle, rt.log))
	}

	if wcfg := config.GetWorkerConfig(cfg, cpr.TaskType); wcfg.Enabled {
		handler, err := cpr.NewHandler(&cpr.Config{Timeout: workerTimeout(wcfg), Rules: routingRules(cfg)}, rt.log)
		if err != nil {
			return started, fmt.Errorf("create %s handler: %w", cpr.TaskType, err)
		}
		add(camunda.StartWorker(zb, cpr.TaskType, wcfg, handler.Handle, rt.log))
	}

	if wcfg := config.GetWorkerConfig(cfg, uas.TaskType); wcfg.Enabled {
		handler := uas.NewHandler(&uas.Config{Timeout: workerTimeout(wcfg), Actor: uas.LoadConfig().Actor}, deps.repo, rt.log)
		add(camunda.StartWorker(zb, uas.TaskType, wcfg, handler.Handle, rt.log))
	}

	if wcfg := config.GetWorkerConfig(cfg, ia.TaskType); wcfg.Enabled {
		if deps.search == nil {
			rt.log.Warn("index-application worker skipped, elasticsearch not configured", nil)
		} else {
			handler := ia.NewHandler(&ia.Config{
				Timeout: workerTimeout(wcfg),
				Index:   cfg.Database.Elasticsearch.ApplicationIndex,
			}, deps.repo, deps.search, rt.log)
			add(camunda.StartWorker(zb, ia.TaskType, wcfg, handler.Handle, rt.log))
		}
	}

	if wcfg := config.GetWorkerConfig(cfg, sn.TaskType); wcfg.Enabled {
		handler, err := sn.NewHandler(&sn.Config{
			EmailEnabled:  cfg.Notifications.Email.Enabled,
			SMSEnabled:    cfg.Notifications.SMS.Enabled,
			SMSPriorities: sn.LoadConfig().SMSPriorities,
			Timeout:       workerTimeout(wcfg),
		}, deps.repo, deps.email, deps.sms, rt.log)
		if err != nil {
			return started, fmt.Errorf("create %s handler: %w", sn.TaskType, err)
		}
		add(camunda.StartWorker(zb, sn.TaskType, wcfg, handler.Handle, rt.log))
	}

	rt.log.Info("job workers registered", map[string]interface{}{"count": len(started)})
	return started, nil
}

func stopWorkers(ctx context.Context, workers []*camunda.Worker) {
	for _, w := range workers {
		w.Stop(ctx)
	}
}

// notificationSenders builds the SES and SNS senders for the enabled channels.
// Disabled channels come back as nil interfaces.
func (rt *runtime) notificationSenders(ctx context.Context) (sn.EmailSender, sn.SMSSender, error) {
	nc := rt.cfg.Notifications
	if !nc.Email.Enabled && !nc.SMS.Enabled {
		return nil, nil, nil
	}
	awsCfg, err := aws.LoadConfig(ctx, nc.AWS.Region)
	if err != nil {
		return nil, nil, fmt.Errorf("load AWS config: %w", err)
	}
	var (
		email sn.EmailSender
		sms   sn.SMSSender
	)
	if nc.Email.Enabled {
		email = aws.NewMailer(awsCfg, nc.Email.FromEmail)
	}
	if nc.SMS.Enabled {
		sms = aws.NewSMSSender(awsCfg, nc.SMS.SenderID)
	}
	return email, sms, nil
}

func (rt *runtime) workerDeps(ctx context.Context) (workerDeps, error) {
	deps := workerDeps{repo: applications.NewRepository(rt.pg.DB)}
	if rt.es != nil {
		deps.search = applications.NewSearch(rt.es, rt.cfg.Database.Elasticsearch.ApplicationIndex)
	}
	var err error
	deps.email, deps.sms, err = rt.notificationSenders(ctx)
	return deps, err
}

func runWorkers(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.log.Info("Starting job workers...", nil)
	if err := rt.connectPostgres(ctx); err != nil {
		return err
	}
	if err := rt.connectElasticsearch(ctx); err != nil {
		return err
	}
	if err := rt.connectZeebe(ctx); err != nil {
		return err
	}

	deps, err := rt.workerDeps(ctx)
	if err != nil {
		return err
	}
	workers, err := rt.startWorkers(deps)
	if err != nil {
		stopWorkers(context.Background(), workers)
		return err
	}

	<-ctx.Done()
	rt.log.Info("shutting down job workers", nil)
	stopWorkers(context.Background(), workers)
	return nil
}

func listWorkers(cmd *cobra.Command, _ []string) error {
	reg := registry.Default()
	if registryPath != "" {
		var err error
		if reg, err = registry.LoadRegistry(registryPath); err != nil {
			return err
		}
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK TYPE\tCATEGORY\tENABLED\tMAX JOBS\tRETRIES\tDESCRIPTION")
	for _, a := range reg.Activities {
		wcfg := config.GetWorkerConfig(cfg, a.TaskType)
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%d\t%s\n",
			a.TaskType, a.Category, wcfg.Enabled, wcfg.MaxJobsActive, a.Retries, a.Description)
	}
	return tw.Flush()
}
