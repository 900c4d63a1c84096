package push

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// Gateway queues a push notification for a user. Fire-and-forget: callers
// never treat a push failure as a failure of the triggering operation.
type Gateway interface {
	Send(ctx context.Context, userID, title, body string, data map[string]string) error
}

// QueueGateway enqueues deliveries on the push queue; a Worker drains it.
type QueueGateway struct {
	client *asynq.Client
}

func NewQueueGateway(redisURL string) (*QueueGateway, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &QueueGateway{client: asynq.NewClient(opt)}, nil
}

func (g *QueueGateway) Send(ctx context.Context, userID, title, body string, data map[string]string) error {
	task, err := newDeliverTask(DeliverPayload{
		UserID: userID,
		Title:  title,
		Body:   body,
		Data:   data,
	})
	if err != nil {
		return fmt.Errorf("build push task: %w", err)
	}

	info, err := g.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue push task: %w", err)
	}

	log.Debug().
		Str("userId", userID).
		Str("taskId", info.ID).
		Msg("push delivery queued")
	return nil
}

func (g *QueueGateway) Close() error {
	return g.client.Close()
}
