package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/platform/obs"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RouteEvent is published on the run channel each time a route is saved.
type RouteEvent struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	RouteName string    `json:"route_name"`
	Stops     int       `json:"stops"`
	Key       string    `json:"key"`
	At        time.Time `json:"at"`
}

// RedisSink stores each plan under a key and announces it on a pub/sub
// channel so other processes can follow a run as it progresses.
type RedisSink struct {
	rdb   *redis.Client
	runID string
	ttl   time.Duration
}

func NewRedisSink(url, runID string, ttl time.Duration) (*RedisSink, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis sink: parse url: %w", err)
	}
	return NewRedisSinkFromClient(redis.NewClient(opt), runID, ttl)
}

func NewRedisSinkFromClient(rdb *redis.Client, runID string, ttl time.Duration) (*RedisSink, error) {
	if rdb == nil {
		return nil, errors.New("redis sink: client is nil")
	}
	if runID == "" {
		return nil, errors.New("redis sink: run id must not be empty")
	}
	return &RedisSink{rdb: rdb, runID: runID, ttl: ttl}, nil
}

func (s *RedisSink) Channel() string { return "routeprep:run:" + s.runID }

func (s *RedisSink) PlanKey(route string) string {
	return "routeprep:plan:" + s.runID + ":" + route
}

func (s *RedisSink) Save(ctx context.Context, plan *domain.RoutePlan) (_ string, err error) {
	defer obs.Time(ctx, "sink.redis.Save")(&err)

	data, err := json.Marshal(NewPlanDocument(s.runID, plan))
	if err != nil {
		return "", fmt.Errorf("redis sink: encode route %q: %w", plan.RouteName, err)
	}

	key := s.PlanKey(plan.RouteName)
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis sink: set %q: %w", key, err)
	}

	evt, err := json.Marshal(RouteEvent{
		Type:      "route.solved",
		RunID:     s.runID,
		RouteName: plan.RouteName,
		Stops:     len(plan.OrderIDs()),
		Key:       key,
		At:        time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("redis sink: encode event: %w", err)
	}
	if err := s.rdb.Publish(ctx, s.Channel(), evt).Err(); err != nil {
		return "", fmt.Errorf("redis sink: publish %q: %w", s.Channel(), err)
	}
	return "redis://" + key, nil
}

func (s *RedisSink) Close() error { return s.rdb.Close() }
