package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"uncommon.org/progresstrack/internal/modules/student/dto"
)

const StudentEventsChannel = "students:events"

// NotificationService fans student changes out to subscribers through redis
// pub/sub. Without redis every publish is a no-op.
type NotificationService interface {
	PublishStudentEvent(ctx context.Context, event dto.StudentEvent) error
}

type notificationService struct {
	redisClient *redis.Client
}

func NewNotificationService(redisClient *redis.Client) NotificationService {
	return &notificationService{redisClient: redisClient}
}

func (s *notificationService) PublishStudentEvent(ctx context.Context, event dto.StudentEvent) error {
	if s.redisClient == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode student event: %w", err)
	}

	if err := s.redisClient.Publish(ctx, StudentEventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish student event: %w", err)
	}
	return nil
}
