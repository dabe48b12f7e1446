package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jamolinav/ai-assist-attorney/models"
)

const (
	TaskAcquireCase    = "causa:acquire"
	TaskAnswerQuestion = "rag:answer"
)

// AcquireCasePayload schedules a portal acquisition for a registered
// case. ProgressKey is where the worker reports progress.
type AcquireCasePayload struct {
	CaseID      string              `json:"case_id"`
	Identity    models.CaseIdentity `json:"identity"`
	ProgressKey string              `json:"progress_key"`
}

// AnswerQuestionPayload schedules an async answer over a ready case.
type AnswerQuestionPayload struct {
	CaseID      string `json:"case_id"`
	Question    string `json:"question"`
	ProgressKey string `json:"progress_key"`
}

// NewAcquireCaseTask builds the acquisition task. Acquisition is not
// retried by the queue: the orchestrator's error state plus the next
// user request is the retry path, and a blind requeue would hammer the
// portal.
func NewAcquireCaseTask(payload AcquireCasePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskAcquireCase,
		data,
		asynq.MaxRetry(0),
		asynq.Timeout(15*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewAnswerQuestionTask(payload AnswerQuestionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskAnswerQuestion,
		data,
		asynq.MaxRetry(0),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("default"),
	), nil
}
