package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheSetGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheFromClient(db, "pace")
	ctx := context.Background()

	mock.ExpectSet("pace:day:2026-10-17:steps", `{"steps":42}`, time.Hour).SetVal("OK")
	mock.ExpectGet("pace:day:2026-10-17:steps").SetVal(`{"steps":42}`)
	mock.ExpectGet("pace:day:2026-10-16:steps").RedisNil()

	require.NoError(t, c.Set(ctx, "day:2026-10-17:steps", point{Steps: 42}, time.Hour))

	var got point
	require.NoError(t, c.Get(ctx, "day:2026-10-17:steps", &got))
	assert.Equal(t, 42, got.Steps)

	assert.ErrorIs(t, c.Get(ctx, "day:2026-10-16:steps", &got), ErrCacheMiss)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheDeleteByPatternScans(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheFromClient(db, "pace")
	ctx := context.Background()

	mock.ExpectScan(0, "pace:day:2026-10-17:*", scanCount).SetVal([]string{"pace:day:2026-10-17:steps"}, 9)
	mock.ExpectUnlink("pace:day:2026-10-17:steps").SetVal(1)
	mock.ExpectScan(9, "pace:day:2026-10-17:*", scanCount).SetVal([]string{"pace:day:2026-10-17:daily"}, 0)
	mock.ExpectUnlink("pace:day:2026-10-17:daily").SetVal(1)

	require.NoError(t, c.DeleteByPattern(ctx, "day:2026-10-17:*"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
