package push

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// TypeDeliver is the queue task type for one push delivery.
	TypeDeliver = "push:deliver"

	queueName      = "push"
	deliverRetries = 3
)

// DeliverPayload is the task body for a push delivery.
type DeliverPayload struct {
	UserID string            `json:"userId"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

func newDeliverTask(p DeliverPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDeliver, payload,
		asynq.Queue(queueName),
		asynq.MaxRetry(deliverRetries),
	), nil
}
