// cmd/coordinator/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dialogmote-coordinator/internal/audit"
	commonaws "dialogmote-coordinator/internal/common/aws"
	"dialogmote-coordinator/internal/common/camunda"
	"dialogmote-coordinator/internal/common/config"
	"dialogmote-coordinator/internal/common/database"
	"dialogmote-coordinator/internal/common/logger"
	"dialogmote-coordinator/internal/common/metrics"
	"dialogmote-coordinator/internal/dialogmote"
	"dialogmote-coordinator/internal/dispatch"
	"dialogmote-coordinator/internal/distribution"
	"dialogmote-coordinator/internal/events"
	"dialogmote-coordinator/internal/gateway"
	"dialogmote-coordinator/internal/response"

	mt "dialogmote-coordinator/internal/workers/dialogmote/meeting-transition"
	ppr "dialogmote-coordinator/internal/workers/dialogmote/process-practitioner-response"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting dialogmote coordinator...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	sink, err := metrics.NewOTelSink(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("metrics init failed", zap.Error(err))
	}
	defer sink.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zeebeClient := zeebe.GetClient()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		redis = database.NewRedis(cfg.Database.Redis)
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional, audit mirror only) ---
	var auditIndexer dialogmote.AuditIndexer
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		auditIndexer = audit.NewIndexer(esClient, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Init gateway clients ---
	gwTimeout := time.Duration(cfg.Integrations.Gateways.TimeoutMS) * time.Millisecond

	renderer := gateway.NewPDFRenderClient(cfg.Integrations.Gateways.PDFRenderURL, gwTimeout)
	mailbox := gateway.NewMailboxClient(cfg.Integrations.Gateways.MailboxURL, gwTimeout)
	clinical := gateway.NewClinicalClient(cfg.Integrations.Gateways.ClinicalURL, gwTimeout)
	contacts := gateway.NewContactClient(cfg.Integrations.Gateways.ContactURL, gwTimeout)
	reachability := gateway.NewReachabilityClient(cfg.Integrations.Gateways.ReachabilityURL, gwTimeout, redis.Client, log)
	distGateway := gateway.NewDistributionClient(cfg.Integrations.Gateways.DistributionURL, gwTimeout)

	// --- Init AWS clients ---
	var publisher dispatch.EventPublisher
	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := commonaws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		publisher = events.NewSNSPublisher(snsClient, cfg.Integrations.AWS.SNS.TopicARN, log)
	}

	var contactNotifier dispatch.ContactNotifier
	if cfg.Integrations.AWS.SES.Enabled {
		sesClient, err := commonaws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		contactNotifier = gateway.NewSESContactNotifier(sesClient, cfg.Integrations.AWS.SES.FromEmail)
	}

	zapLog.Info("All external service clients initialized")

	// --- Build domain services ---
	orchestrator := dispatch.NewOrchestrator(
		renderer, reachability, contacts, mailbox, clinical,
		contactNotifier, publisher, log, sink,
	)
	meetingService := dialogmote.NewService(pg.DB, orchestrator, renderer, auditIndexer, log, sink)
	responseService := response.NewService(pg.DB, publisher, log)

	// --- Register workers ---
	if cfg.Workers[mt.TaskType].Enabled {
		handler := mt.NewHandler(
			&mt.Config{
				Timeout: time.Duration(cfg.Workers[mt.TaskType].Timeout) * time.Millisecond,
			},
			meetingService, log,
		)
		startWorker(zeebeClient, mt.TaskType, cfg.Workers[mt.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[ppr.TaskType].Enabled {
		handler := ppr.NewHandler(
			&ppr.Config{
				Timeout: time.Duration(cfg.Workers[ppr.TaskType].Timeout) * time.Millisecond,
			},
			responseService, log,
		)
		startWorker(zeebeClient, ppr.TaskType, cfg.Workers[ppr.TaskType], handler.Handle, zapLog)
	}

	// --- Distribution retry cron ---
	cronCtx, cronCancel := context.WithCancel(ctx)
	defer cronCancel()
	if cfg.Cron.Enabled {
		interval := time.Duration(cfg.Cron.DistributionIntervalSeconds) * time.Second
		job := distribution.NewJob(pg.DB, distGateway, log, sink, interval)
		go job.Start(cronCtx)
		zapLog.Info("Distribution cron started", zap.Duration("interval", interval))
	}

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.App.MetricsPort)
		zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	cronCancel()

	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Coordinator stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
