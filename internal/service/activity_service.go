package service

import (
	"context"
	"fmt"
	"time"

	"ai-study-portal-be/internal/pkg/logger"
	"ai-study-portal-be/pkg/events"
	pktNats "ai-study-portal-be/pkg/nats"

	"github.com/redis/go-redis/v9"
)

const (
	activityKeyPrefix  = "chat_activity:"
	activityDurable    = "chat-activity"
	activityMaxEntries = 50
	activityTTL        = 30 * 24 * time.Hour
)

// EventSubscriber attaches a durable handler to a bus subject
type EventSubscriber interface {
	Subscribe(ctx context.Context, subject, durableName string, handler pktNats.EventHandler) error
}

type IActivityService interface {
	Start(ctx context.Context) error
	HandleEvent(ctx context.Context, event events.Event) error
	Record(ctx context.Context, owner, sessionID string, at time.Time) error
	RecentSessions(ctx context.Context, owner string, limit int) ([]string, error)
	Forget(ctx context.Context, owner, sessionID string) error
}

// activityService projects completed turns into a per-owner "recently
// active sessions" list kept in redis.
type activityService struct {
	rdb        *redis.Client
	subscriber EventSubscriber
	logger     logger.ILogger
}

// NewActivityService builds the projection. subscriber may be nil, in which
// case Start is a no-op and the list only shrinks through Forget.
func NewActivityService(rdb *redis.Client, subscriber EventSubscriber, log logger.ILogger) IActivityService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &activityService{rdb: rdb, subscriber: subscriber, logger: log}
}

func (s *activityService) Start(ctx context.Context) error {
	if s.subscriber == nil {
		s.logger.Warn("ActivityService", "No event subscriber configured, activity projection disabled", nil)
		return nil
	}
	subject := pktNats.Subject(events.ChatTurnAppended)
	if err := s.subscriber.Subscribe(ctx, subject, activityDurable, s.HandleEvent); err != nil {
		return fmt.Errorf("activity subscription: %w", err)
	}
	s.logger.Info("ActivityService", "Listening for chat activity", map[string]interface{}{"subject": subject})
	return nil
}

func (s *activityService) HandleEvent(ctx context.Context, event events.Event) error {
	if event.EventType() != events.ChatTurnAppended {
		return nil
	}
	payload := event.Payload()
	owner, _ := payload["owner"].(string)
	sessionID, _ := payload["session_id"].(string)
	if owner == "" || sessionID == "" {
		s.logger.Warn("ActivityService", "Ignoring event without owner or session", map[string]interface{}{"payload": payload})
		return nil
	}
	return s.Record(ctx, owner, sessionID, event.Timestamp())
}

// Record marks sessionID as active at the given time
func (s *activityService) Record(ctx context.Context, owner, sessionID string, at time.Time) error {
	key := activityKey(owner)
	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: sessionID})
	pipe.ZRemRangeByRank(ctx, key, 0, -activityMaxEntries-1)
	pipe.Expire(ctx, key, activityTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// RecentSessions returns session ids, most recently active first
func (s *activityService) RecentSessions(ctx context.Context, owner string, limit int) ([]string, error) {
	if limit <= 0 || limit > activityMaxEntries {
		limit = activityMaxEntries
	}
	ids, err := s.rdb.ZRevRange(ctx, activityKey(owner), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read activity: %w", err)
	}
	return ids, nil
}

func (s *activityService) Forget(ctx context.Context, owner, sessionID string) error {
	return s.rdb.ZRem(ctx, activityKey(owner), sessionID).Err()
}

func activityKey(owner string) string {
	return activityKeyPrefix + owner
}
