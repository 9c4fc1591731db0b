package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDuesReminderScan walks active students and enqueues reminders for
	// overdue fee installments.
	TaskDuesReminderScan = "fees:dues_scan"
	// TaskDuesReminder notifies a single guardian about an overdue installment.
	TaskDuesReminder = "fees:dues_reminder"
)

// DuesReminderPayload describes one overdue installment notification.
type DuesReminderPayload struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Month       string `json:"month"`
	Year        int    `json:"year"`
	Amount      string `json:"amount"`
}

// NewDuesReminderScanTask constructs the periodic scan task. The scan takes no
// payload; it always covers the session containing the current date.
func NewDuesReminderScanTask() *asynq.Task {
	return asynq.NewTask(TaskDuesReminderScan, nil)
}

// NewDuesReminderTask constructs a per-student reminder task.
func NewDuesReminderTask(payload DuesReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDuesReminder, data), nil
}

// HandleDuesReminderTask processes TaskDuesReminder tasks. Delivery is a log
// line for now; the SMS/email gateway integration replaces the final step.
func HandleDuesReminderTask(ctx context.Context, t *asynq.Task) error {
	var payload DuesReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil {
		return asynq.SkipRetry
	}
	printer := message.NewPrinter(language.English)
	body := printer.Sprintf("Fee installment of Rs. %.2f for %s %d is due for %s.",
		amount.InexactFloat64(), payload.Month, payload.Year, payload.StudentName)
	slog.InfoContext(ctx, "dues reminder",
		slog.String("student_id", payload.StudentID),
		slog.String("message", body),
	)
	return nil
}
