package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/taskhive/apiserver/internal/mq"
	"github.com/taskhive/apiserver/internal/observability"
	"github.com/taskhive/apiserver/types"
)

// ReminderService scans for unfinished tasks coming due and publishes
// one event per task to the reminder channel. The scan is stateless;
// consumers own delivery.
type ReminderService struct {
	repo    TaskRepository
	queue   *mq.MQ
	channel string
	window  time.Duration
	now     func() time.Time
}

// NewReminderService constructs a ReminderService. repo is only used
// by Run; Listen works with a nil repo.
func NewReminderService(repo TaskRepository, queue *mq.MQ, channel string, window time.Duration) *ReminderService {
	return &ReminderService{
		repo:    repo,
		queue:   queue,
		channel: channel,
		window:  window,
		now:     time.Now,
	}
}

// Run performs one scan and returns the number of events published.
func (s *ReminderService) Run(ctx context.Context) (int, error) {
	now := s.now()
	reminders, err := s.repo.ListDueBetween(ctx, now, now.Add(s.window))
	if err != nil {
		return 0, fmt.Errorf("scan due tasks: %w", err)
	}

	published := 0
	for _, reminder := range reminders {
		data, err := json.Marshal(reminder)
		if err != nil {
			return published, err
		}
		attrs := map[string]string{
			"task_id": strconv.Itoa(reminder.TaskID),
			"user_id": strconv.Itoa(reminder.UserID),
		}
		id, err := s.queue.Publish(ctx, s.channel, data, attrs)
		if err != nil {
			return published, fmt.Errorf("publish reminder for task %d: %w", reminder.TaskID, err)
		}
		slog.Info("published task reminder",
			"task_id", reminder.TaskID,
			"due_date", reminder.DueDate,
			"message_id", id,
		)
		observability.RemindersPublishedTotal.Inc()
		published++
	}
	return published, nil
}

// Listen consumes reminder events from the channel until ctx ends,
// logging each one. Malformed payloads are acked and dropped.
func (s *ReminderService) Listen(ctx context.Context) error {
	return s.queue.Subscribe(ctx, s.channel, func(_ context.Context, msg mq.Message) error {
		var reminder types.TaskReminder
		if err := json.Unmarshal(msg.Data, &reminder); err != nil {
			slog.Error("dropped malformed reminder", "message_id", msg.ID, "error", err)
			return nil
		}
		slog.Info("task reminder",
			"task_id", reminder.TaskID,
			"title", reminder.Title,
			"due_date", reminder.DueDate,
			"email", reminder.Email,
		)
		return nil
	})
}
