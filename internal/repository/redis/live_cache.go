package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout:
//   game:{id}:tick       latest tick result JSON (TTL 10s)
//   game:{id}:ticklock   driver lock, SETNX with short TTL
//   game:{id}:seen:{pid} heartbeat marker with presence-window TTL

const tickResultTTL = 10 * time.Second

func tickKey(gameID string) string { return "game:" + gameID + ":tick" }
func lockKey(gameID string) string { return "game:" + gameID + ":ticklock" }
func seenKey(gameID, playerID string) string {
	return "game:" + gameID + ":seen:" + playerID
}

// SetTickResult caches the latest tick summary for cheap reads.
func (c *Client) SetTickResult(ctx context.Context, gameID string, result json.RawMessage) error {
	if err := c.rdb.Set(ctx, tickKey(gameID), []byte(result), tickResultTTL).Err(); err != nil {
		return fmt.Errorf("set tick result: %w", err)
	}
	return nil
}

// GetTickResult returns the latest cached tick summary, or nil when absent.
func (c *Client) GetTickResult(ctx context.Context, gameID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, tickKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tick result: %w", err)
	}
	return data, nil
}

// TryTickLock takes the per-game driver lock. The lock only suppresses
// overlapping invocations from the in-process driver; the tick processor is
// safe without it.
func (c *Client) TryTickLock(ctx context.Context, gameID string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, lockKey(gameID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("tick lock: %w", err)
	}
	return ok, nil
}

// ReleaseTickLock drops the per-game driver lock.
func (c *Client) ReleaseTickLock(ctx context.Context, gameID string) error {
	if err := c.rdb.Del(ctx, lockKey(gameID)).Err(); err != nil {
		return fmt.Errorf("release tick lock: %w", err)
	}
	return nil
}

// Heartbeat mirrors a player's presence alongside game_players.last_seen.
func (c *Client) Heartbeat(ctx context.Context, gameID, playerID string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, seenKey(gameID, playerID), time.Now().UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// DeleteGameData removes all live keys for a finished game.
func (c *Client) DeleteGameData(ctx context.Context, gameID string) error {
	iter := c.rdb.Scan(ctx, 0, "game:"+gameID+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan game keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete game keys: %w", err)
	}
	return nil
}
