package service

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "github.com/mediline/telehealth-server-go/internal/errors"
	"github.com/mediline/telehealth-server-go/internal/model"
	"github.com/mediline/telehealth-server-go/internal/repository"
	"github.com/mediline/telehealth-server-go/internal/util"
)

var validPlatforms = []string{"web", "ios", "android"}

// DeviceService manages the push tokens used for fallback delivery when a
// user has no live channel.
type DeviceService struct {
	tokenRepo repository.PushTokenRepository
}

func NewDeviceService(tokenRepo repository.PushTokenRepository) *DeviceService {
	return &DeviceService{tokenRepo: tokenRepo}
}

func (s *DeviceService) RegisterToken(ctx context.Context, userID, token, platform string) (*model.PushToken, error) {
	if token == "" {
		return nil, apperrors.MissingRequired("token")
	}
	if !util.IsValidEnum(platform, validPlatforms) {
		return nil, apperrors.InvalidInput("platform", "must be web, ios or android")
	}
	if platform == "" {
		platform = "web"
	}

	stored, err := s.tokenRepo.Upsert(ctx, model.UpsertPushTokenParams{
		UserID:   userID,
		Token:    token,
		Platform: platform,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("userId", userID).
		Str("platform", platform).
		Msg("push token registered")
	return stored, nil
}

func (s *DeviceService) RemoveToken(ctx context.Context, userID, token string) error {
	if token == "" {
		return apperrors.MissingRequired("token")
	}
	if err := s.tokenRepo.Delete(ctx, userID, token); err != nil {
		return apperrors.Database(err)
	}
	return nil
}
