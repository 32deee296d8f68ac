// Package audit writes one structured line per balance change and state
// transition so that settlement history can be reconstructed from logs.
package audit

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scribeworks/backend/internal/models"
)

type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	EventType    string    `json:"event_type"`
	AccountID    string    `json:"account_id,omitempty"`
	TaskID       int64     `json:"task_id,omitempty"`
	SubmissionID string    `json:"submission_id,omitempty"`
	Amount       string    `json:"amount,omitempty"`
	Status       string    `json:"status"`
	Details      any       `json:"details,omitempty"`
}

type Logger struct {
	log logrus.FieldLogger
}

func NewLogger(log logrus.FieldLogger) *Logger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Logger{log: log}
}

func (a *Logger) LogLedgerEntry(entry *models.LedgerEntry) {
	event := Event{
		Timestamp: entry.CreatedAt,
		EventType: string(entry.Kind),
		AccountID: entry.AccountID,
		Amount:    entry.Amount.StringFixed(2),
		Status:    "SUCCESS",
		Details:   map[string]string{"entry_id": entry.ID},
	}
	if entry.TaskID != nil {
		event.TaskID = *entry.TaskID
	}
	if entry.SubmissionID != nil {
		event.SubmissionID = *entry.SubmissionID
	}
	a.write(event)
}

// LogTaskTransition records a task moving between statuses.
func (a *Logger) LogTaskTransition(task *models.Task, accountID string, from models.TaskStatus, reason string) {
	a.write(Event{
		Timestamp: time.Now().UTC(),
		EventType: "TASK_" + string(task.Status),
		AccountID: accountID,
		TaskID:    task.ID,
		Status:    "SUCCESS",
		Details: map[string]string{
			"from":   string(from),
			"to":     string(task.Status),
			"reason": reason,
		},
	})
}

func (a *Logger) LogSubmissionResolved(sub *models.Submission) {
	details := map[string]string{}
	if sub.ResolvedBy != nil {
		details["resolved_by"] = *sub.ResolvedBy
	}
	a.write(Event{
		Timestamp:    time.Now().UTC(),
		EventType:    "SUBMISSION_" + string(sub.Status),
		AccountID:    sub.AccountID,
		TaskID:       sub.TaskID,
		SubmissionID: sub.ID,
		Status:       "SUCCESS",
		Details:      details,
	})
}

func (a *Logger) LogRoleChange(accountID string, from, to models.Role, actor string) {
	a.write(Event{
		Timestamp: time.Now().UTC(),
		EventType: "ROLE_CHANGE",
		AccountID: accountID,
		Status:    "SUCCESS",
		Details: map[string]string{
			"from":  string(from),
			"to":    string(to),
			"actor": actor,
		},
	})
}

func (a *Logger) LogError(operation, accountID string, err error) {
	a.write(Event{
		Timestamp: time.Now().UTC(),
		EventType: operation,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) write(event Event) {
	data, _ := json.Marshal(event)
	a.log.WithField("component", "audit").Infof("AUDIT: %s", string(data))
}
