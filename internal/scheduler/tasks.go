package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskStuckScan = "onboarding.stuck.scan"

type StuckScanPayload struct {
	RequestedAt time.Time `json:"requestedAt"`
}

func NewStuckScanTask(payload StuckScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStuckScan, data), nil
}

func ParseStuckScanPayload(task *asynq.Task) (StuckScanPayload, error) {
	var payload StuckScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return StuckScanPayload{}, err
	}
	return payload, nil
}
