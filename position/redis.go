package position

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/theoremus-urban-solutions/fleet-tracking/broadcast"
	"github.com/theoremus-urban-solutions/fleet-tracking/fleet"
)

const (
	agentSetKey      = "fleet:agents"
	latestKeyPrefix  = "fleet:latest:"
	historyKeyPrefix = "fleet:history:"
)

// applyLatest compares-and-sets the latest hash on observedAt. Returns
// 1 when the report was applied (ties included, last writer wins).
var applyLatest = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'ts')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'ts', ARGV[1], 'lat', ARGV[2], 'lng', ARGV[3])
redis.call('SADD', KEYS[2], ARGV[4])
return 1
`)

// RedisStore implements Store against Redis: an append-only stream per
// agent plus a latest hash maintained by an atomic Lua compare-and-set.
//
// The index update is linearizable, but the broadcast happens after
// the script returns, so two writers for the same agent racing inside
// that window can enqueue their deltas out of order. Deployments that
// need the strict per-agent ordering guarantee use MemoryStore.
type RedisStore struct {
	rdb  *redis.Client
	sink broadcast.Publisher
}

// NewRedisStore connects and pings the instance.
func NewRedisStore(ctx context.Context, addr string, db int, sink broadcast.Publisher) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: redis ping: %v", fleet.ErrStorageUnavailable, err)
	}
	return &RedisStore{rdb: rdb, sink: sink}, nil
}

// Close releases the client connection.
func (s *RedisStore) Close() error { return s.rdb.Close() }

// Record appends to the agent's history stream and runs the latest
// compare-and-set. All transport failures map to
// fleet.ErrStorageUnavailable so the gateway can retry.
func (s *RedisStore) Record(ctx context.Context, r fleet.PositionReport) error {
	ts := r.ObservedAt.UnixNano()
	err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: historyKeyPrefix + r.AgentID,
		Values: map[string]any{
			"ts":  ts,
			"lat": r.Lat,
			"lng": r.Lng,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: xadd: %v", fleet.ErrStorageUnavailable, err)
	}

	applied, err := applyLatest.Run(ctx, s.rdb,
		[]string{latestKeyPrefix + r.AgentID, agentSetKey},
		ts, r.Lat, r.Lng, r.AgentID,
	).Int()
	if err != nil {
		return fmt.Errorf("%w: latest cas: %v", fleet.ErrStorageUnavailable, err)
	}
	if applied == 1 && s.sink != nil {
		s.sink.Publish(fleet.LocationDeltaFor(r))
	}
	return nil
}

// Latest reads the agent's latest hash.
func (s *RedisStore) Latest(ctx context.Context, agentID string) (fleet.PositionReport, error) {
	vals, err := s.rdb.HGetAll(ctx, latestKeyPrefix+agentID).Result()
	if err != nil {
		return fleet.PositionReport{}, fmt.Errorf("%w: hgetall: %v", fleet.ErrStorageUnavailable, err)
	}
	if len(vals) == 0 {
		return fleet.PositionReport{}, fleet.ErrAgentNotFound
	}
	return reportFromHash(agentID, vals)
}

// LatestAll pipelines one hash read per known agent: O(agents), never
// a scan over history.
func (s *RedisStore) LatestAll(ctx context.Context) ([]fleet.PositionReport, error) {
	agents, err := s.rdb.SMembers(ctx, agentSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: smembers: %v", fleet.ErrStorageUnavailable, err)
	}
	pipe := s.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(agents))
	for _, a := range agents {
		cmds[a] = pipe.HGetAll(ctx, latestKeyPrefix+a)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: pipeline: %v", fleet.ErrStorageUnavailable, err)
	}
	out := make([]fleet.PositionReport, 0, len(agents))
	for a, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			continue
		}
		r, err := reportFromHash(a, vals)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func reportFromHash(agentID string, vals map[string]string) (fleet.PositionReport, error) {
	ts, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return fleet.PositionReport{}, fmt.Errorf("corrupt latest hash for %s: %v", agentID, err)
	}
	lat, err := strconv.ParseFloat(vals["lat"], 64)
	if err != nil {
		return fleet.PositionReport{}, fmt.Errorf("corrupt latest hash for %s: %v", agentID, err)
	}
	lng, err := strconv.ParseFloat(vals["lng"], 64)
	if err != nil {
		return fleet.PositionReport{}, fmt.Errorf("corrupt latest hash for %s: %v", agentID, err)
	}
	return fleet.PositionReport{
		AgentID:    agentID,
		Lat:        lat,
		Lng:        lng,
		ObservedAt: time.Unix(0, ts).UTC(),
	}, nil
}
