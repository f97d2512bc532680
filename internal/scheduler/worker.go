package scheduler

import (
	"context"
	"fmt"
	"time"

	leadsrepo "leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/notifications"
	"leadflow_backend/internal/tenants"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// WorkerConfig combines the queue settings with the recompute cron spec.
type WorkerConfig interface {
	config.SchedulerConfig
	GetMetricsRecomputeCron() string
}

// LeadReader loads leads for reminder validation.
type LeadReader interface {
	Get(ctx context.Context, leadID, tenantID uuid.UUID) (leadsrepo.Lead, error)
}

// TenantReader resolves the tenant's reminder address.
type TenantReader interface {
	GetTenant(ctx context.Context, tenantID uuid.UUID) (tenants.Tenant, error)
}

// ReminderMailer delivers follow-up reminder emails.
type ReminderMailer interface {
	SendFollowUpReminder(ctx context.Context, reminder notifications.FollowUpReminder) error
}

// NotificationWriter creates in-app notification rows.
type NotificationWriter interface {
	Create(ctx context.Context, p notifications.CreateParams) (notifications.Notification, error)
}

// MetricsRecomputer rebuilds one day of the daily rollup.
type MetricsRecomputer interface {
	Recompute(ctx context.Context, day time.Time) error
}

// Worker consumes queued tasks and runs the periodic recompute.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	leads     LeadReader
	tenants   TenantReader
	mailer    ReminderMailer
	notifs    NotificationWriter
	metrics   MetricsRecomputer
	log       *logger.Logger
}

// NewWorker creates the asynq server, handler mux, and the cron-driven
// periodic scheduler for the metrics rebuild.
func NewWorker(
	cfg WorkerConfig,
	leads LeadReader,
	tenantReader TenantReader,
	mailer ReminderMailer,
	notifs NotificationWriter,
	metrics MetricsRecomputer,
	log *logger.Logger,
) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	periodic := asynq.NewScheduler(opt, nil)
	if cron := cfg.GetMetricsRecomputeCron(); cron != "" {
		task, err := NewMetricsRecomputeTask(MetricsRecomputePayload{})
		if err != nil {
			return nil, err
		}
		if _, err := periodic.Register(cron, task, asynq.Queue(queue)); err != nil {
			return nil, fmt.Errorf("register metrics recompute: %w", err)
		}
	}

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		scheduler: periodic,
		mux:       mux,
		leads:     leads,
		tenants:   tenantReader,
		mailer:    mailer,
		notifs:    notifs,
		metrics:   metrics,
		log:       log,
	}

	mux.HandleFunc(TaskFollowUpReminder, w.handleFollowUpReminder)
	mux.HandleFunc(TaskMetricsRecompute, w.handleMetricsRecompute)

	return w, nil
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.log.Error("periodic scheduler failed to start", "error", err)
		} else {
			defer w.scheduler.Shutdown()
		}
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleFollowUpReminder fires when a scheduled follow-up comes due. The
// reminder is dropped when the follow-up was cleared or rescheduled after
// the task was enqueued.
func (w *Worker) handleFollowUpReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseFollowUpReminderPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}
	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return err
	}

	lead, err := w.leads.Get(ctx, leadID, tenantID)
	if err != nil {
		return err
	}
	if lead.ScheduledAt == nil {
		return nil
	}
	// timestamptz stores microseconds; truncate both sides so a reminder
	// enqueued with nanosecond precision still matches the stored value
	if !lead.ScheduledAt.Truncate(time.Microsecond).Equal(payload.At.Truncate(time.Microsecond)) {
		// rescheduled since this reminder was enqueued
		return nil
	}

	phone := ""
	if lead.Phone != nil {
		phone = *lead.Phone
	}

	if w.notifs != nil {
		if _, err := w.notifs.Create(ctx, notifications.CreateParams{
			TenantID: tenantID,
			LeadID:   &leadID,
			Kind:     notifications.KindFollowUpDue,
			Title:    fmt.Sprintf("Follow-up due: %s", leadDisplayName(lead)),
			Body:     fmt.Sprintf("Scheduled for %s", payload.At.Format("02/01/2006 15:04")),
		}); err != nil {
			w.log.DatabaseError("scheduler.FollowUpNotification", err)
		}
	}

	tenant, err := w.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant.NotifyEmail == "" || w.mailer == nil {
		return nil
	}

	return w.mailer.SendFollowUpReminder(ctx, notifications.FollowUpReminder{
		To:          tenant.NotifyEmail,
		LeadName:    lead.Name,
		LeadPhone:   phone,
		ScheduledAt: payload.At,
	})
}

// handleMetricsRecompute rebuilds one day of the daily rollup. The nightly
// cron enqueues it with an empty date, meaning yesterday.
func (w *Worker) handleMetricsRecompute(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseMetricsRecomputePayload(task)
	if err != nil {
		return err
	}

	day := time.Now().UTC().AddDate(0, 0, -1)
	if payload.Date != "" {
		day, err = time.Parse("2006-01-02", payload.Date)
		if err != nil {
			return fmt.Errorf("invalid recompute date %q: %w", payload.Date, err)
		}
	}

	return w.metrics.Recompute(ctx, day)
}

func leadDisplayName(lead leadsrepo.Lead) string {
	if lead.Name != "" {
		return lead.Name
	}
	if lead.Phone != nil && *lead.Phone != "" {
		return *lead.Phone
	}
	return "unnamed lead"
}
