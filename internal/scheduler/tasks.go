// Package scheduler provides the asynq task queue: delayed follow-up
// reminders and the nightly metrics rebuild.
package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskFollowUpReminder = "leads.followup.reminder"

const TaskMetricsRecompute = "metrics.recompute"

// FollowUpReminderPayload identifies the follow-up a reminder fires for. At
// carries the scheduled time so a rescheduled follow-up invalidates the
// stale reminder.
type FollowUpReminderPayload struct {
	LeadID   string    `json:"leadId"`
	TenantID string    `json:"tenantId"`
	At       time.Time `json:"at"`
}

// MetricsRecomputePayload names the day to rebuild. An empty date means
// yesterday, which is what the nightly cron wants.
type MetricsRecomputePayload struct {
	Date string `json:"date,omitempty"` // 2006-01-02
}

func NewFollowUpReminderTask(payload FollowUpReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowUpReminder, data), nil
}

func ParseFollowUpReminderPayload(task *asynq.Task) (FollowUpReminderPayload, error) {
	var payload FollowUpReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return FollowUpReminderPayload{}, err
	}
	return payload, nil
}

func NewMetricsRecomputeTask(payload MetricsRecomputePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMetricsRecompute, data), nil
}

func ParseMetricsRecomputePayload(task *asynq.Task) (MetricsRecomputePayload, error) {
	var payload MetricsRecomputePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MetricsRecomputePayload{}, err
	}
	return payload, nil
}
