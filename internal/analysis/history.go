package analysis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/clevtech/vision-backend/internal/keyframe"
	"github.com/clevtech/vision-backend/internal/shared"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

const DefaultHistoryTTL = 24 * time.Hour

// History keeps full reports in redis for a limited time so clients can
// fetch them again by analysis id.
type History struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewHistory(redisClient *redis.Client, ttl time.Duration) *History {
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	return &History{
		redis: redisClient,
		ttl:   ttl,
	}
}

func historyKey(id string) string {
	return "analysis:" + id + ":report"
}

func (h *History) Save(ctx context.Context, id string, frames []keyframe.FrameResult) error {
	if frames == nil {
		frames = []keyframe.FrameResult{}
	}
	data, err := json.Marshal(frames)
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	return h.redis.Set(ctx, historyKey(id), data, h.ttl).Err()
}

func (h *History) Get(ctx context.Context, id string) ([]keyframe.FrameResult, error) {
	data, err := h.redis.Get(ctx, historyKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var frames []keyframe.FrameResult
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, errors.Wrap(err, "decode report")
	}
	return frames, nil
}

func (h *History) Delete(ctx context.Context, id string) error {
	return h.redis.Del(ctx, historyKey(id)).Err()
}
