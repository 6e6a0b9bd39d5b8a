package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"mediashare/internal/ids"
)

const TypeCleanup = "cleanup"

// Task is a maintenance job carried on the redis stream.
type Task struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func New(taskType string, now time.Time) Task {
	return Task{ID: ids.NewTask(), Type: taskType, EnqueuedAt: now.UTC()}
}

// Values flattens the task into stream entry fields.
func (t Task) Values() map[string]any {
	return map[string]any{
		"id":          t.ID,
		"type":        t.Type,
		"enqueued_at": t.EnqueuedAt.Format(time.RFC3339Nano),
	}
}

// Decode reads a task back from stream entry fields.
func Decode(values map[string]any) (Task, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return Task{}, err
	}
	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	if task.Type == "" {
		return Task{}, fmt.Errorf("decode task: missing type")
	}
	return task, nil
}
