package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/mediline/telehealth-server-go/internal/model"
	"github.com/mediline/telehealth-server-go/internal/repository"
)

const deliverTimeout = 10 * time.Second

// Worker drains the push queue and forwards notifications to the external
// push gateway. Delivery internals live behind that gateway; this worker
// only resolves device tokens and posts the payload.
type Worker struct {
	server     *asynq.Server
	tokenRepo  repository.PushTokenRepository
	gatewayURL string
	httpClient *http.Client
}

func NewWorker(redisURL string, tokenRepo repository.PushTokenRepository, gatewayURL string) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{queueName: 1},
	})

	return &Worker{
		server:     server,
		tokenRepo:  tokenRepo,
		gatewayURL: gatewayURL,
		httpClient: &http.Client{Timeout: deliverTimeout},
	}, nil
}

func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDeliver, w.handleDeliver)

	log.Info().Msg("push worker started")
	return w.server.Start(mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
	log.Info().Msg("push worker stopped")
}

func (w *Worker) handleDeliver(ctx context.Context, task *asynq.Task) error {
	var payload DeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("malformed push task payload, dropping")
		return nil
	}

	if w.gatewayURL == "" {
		log.Debug().Str("userId", payload.UserID).Msg("push gateway not configured, dropping")
		return nil
	}

	tokens, err := w.tokenRepo.FindByUserID(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("find push tokens: %w", err)
	}
	if len(tokens) == 0 {
		log.Debug().Str("userId", payload.UserID).Msg("no push tokens registered, dropping")
		return nil
	}

	body, err := json.Marshal(gatewayRequest{
		Tokens: tokenStrings(tokens),
		Title:  payload.Title,
		Body:   payload.Body,
		Data:   payload.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		// Transient transport error: let the queue retry.
		return fmt.Errorf("push gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Warn().
			Int("status", resp.StatusCode).
			Str("userId", payload.UserID).
			Msg("push gateway rejected delivery")
		return nil
	}

	log.Info().
		Str("userId", payload.UserID).
		Int("tokens", len(tokens)).
		Msg("push notification delivered to gateway")
	return nil
}

type gatewayRequest struct {
	Tokens []string          `json:"tokens"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

func tokenStrings(tokens []model.PushToken) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Token
	}
	return out
}
