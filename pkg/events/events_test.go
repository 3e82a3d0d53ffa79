package events

import (
	"encoding/json"
	"testing"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicFor(t *testing.T) {
	assert.Equal(t, DispatchTopic, TopicFor(TaskDispatchedEvent))
	assert.Equal(t, CompleteTopic, TopicFor(TaskCompletedEvent))
	assert.Equal(t, Topic, TopicFor(GraphStatusChangedEvent))
	assert.Equal(t, Topic, TopicFor(ExecutionSubmittedEvent))
}

func TestNewBaseEvent(t *testing.T) {
	base := NewBaseEvent(TaskFinishedEvent, "exec-1")

	assert.NotEmpty(t, base.ID)
	assert.Equal(t, TaskFinishedEvent, base.Type)
	assert.Equal(t, "exec-1", base.ExecutionID)
	assert.False(t, base.Timestamp.IsZero())
	assert.NotNil(t, base.Metadata)
}

func TestTaskCompleted_JSONSerialization(t *testing.T) {
	original := &TaskCompleted{
		BaseEvent: NewBaseEvent(TaskCompletedEvent, "exec-456"),
		TaskName:  "fetch~0-resize",
		Status:    models.StatusSucceeded,
		Output:    map[string]any{"url": "https://cdn.example.com/a.png"},
		Invocation: &models.InvocationInfo{
			Code:    "0",
			Message: "ok",
		},
	}

	jsonData, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"type":"task.completed"`)
	assert.Contains(t, string(jsonData), `"task_name":"fetch~0-resize"`)
	assert.Contains(t, string(jsonData), `"status":"SUCCEEDED"`)

	var deserialized TaskCompleted

	err = json.Unmarshal(jsonData, &deserialized)
	require.NoError(t, err)

	assert.Equal(t, original.ExecutionID, deserialized.ExecutionID)
	assert.Equal(t, original.TaskName, deserialized.TaskName)
	assert.Equal(t, original.Status, deserialized.Status)
	assert.Equal(t, "https://cdn.example.com/a.png", deserialized.Output["url"])
	require.NotNil(t, deserialized.Invocation)
	assert.Equal(t, "ok", deserialized.Invocation.Message)
	assert.Equal(t, TaskCompletedEvent, deserialized.GetType())
}

func TestGraphStatusChanged_GetType(t *testing.T) {
	event := GraphStatusChanged{}
	assert.Equal(t, GraphStatusChangedEvent, event.GetType())
}
