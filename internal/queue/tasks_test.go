package queue

import (
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamolinav/ai-assist-attorney/models"
)

func TestNewAcquireCaseTask(t *testing.T) {
	payload := AcquireCasePayload{
		CaseID: "65f0a1b2c3d4e5f6a7b8c9d0",
		Identity: models.CaseIdentity{
			Jurisdiction: "Civil",
			Court:        "C.A. de Santiago",
			Tribunal:     "3º Juzgado Civil de Santiago",
			CaseType:     "C",
			Roll:         1234,
			Year:         2024,
		},
		ProgressKey: "clave-1",
	}

	task, err := NewAcquireCaseTask(payload)
	require.NoError(t, err)
	assert.Equal(t, TaskAcquireCase, task.Type())

	var decoded AcquireCasePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, payload, decoded)
}

func TestNewAnswerQuestionTask(t *testing.T) {
	payload := AnswerQuestionPayload{
		CaseID:      "65f0a1b2c3d4e5f6a7b8c9d0",
		Question:    "¿se trabó el embargo?",
		ProgressKey: "clave-2",
	}

	task, err := NewAnswerQuestionTask(payload)
	require.NoError(t, err)
	assert.Equal(t, TaskAnswerQuestion, task.Type())

	var decoded AnswerQuestionPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, payload, decoded)
}

func TestProcessorRegister(t *testing.T) {
	p := &TaskProcessor{}
	assert.NoError(t, p.Register(asynq.NewServeMux()))
}
