package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/mediline/telehealth-server-go/internal/model"
)

type PushTokenRepository interface {
	FindByUserID(ctx context.Context, userID string) ([]model.PushToken, error)
	Upsert(ctx context.Context, params model.UpsertPushTokenParams) (*model.PushToken, error)
	Delete(ctx context.Context, userID, token string) error
	DeleteStale(ctx context.Context) (int64, error)
}

type pushTokenRepo struct {
	db *sqlx.DB
}

func NewPushTokenRepository(db *sqlx.DB) PushTokenRepository {
	return &pushTokenRepo{db: db}
}

func (r *pushTokenRepo) FindByUserID(ctx context.Context, userID string) ([]model.PushToken, error) {
	tokens := []model.PushToken{}
	err := r.db.SelectContext(ctx, &tokens, `
		SELECT * FROM push_tokens
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *pushTokenRepo) Upsert(ctx context.Context, params model.UpsertPushTokenParams) (*model.PushToken, error) {
	var token model.PushToken
	err := r.db.GetContext(ctx, &token, `
		INSERT INTO push_tokens (user_id, token, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, token) DO UPDATE SET
			platform = EXCLUDED.platform,
			updated_at = NOW()
		RETURNING *
	`, params.UserID, params.Token, params.Platform)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *pushTokenRepo) Delete(ctx context.Context, userID, token string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM push_tokens
		WHERE user_id = $1 AND token = $2
	`, userID, token)
	return err
}

func (r *pushTokenRepo) DeleteStale(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM push_tokens
		WHERE updated_at < NOW() - INTERVAL '90 days'
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
