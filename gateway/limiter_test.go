package gateway_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"trend-monitor-go/gateway"
)

// TestTokenBucketLimiter_BurstThenBlocks 验证突发额度耗尽后开始限速
func TestTokenBucketLimiter_BurstThenBlocks(t *testing.T) {
	limiter := gateway.NewTokenBucketLimiter(10, 3)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		assert.NoError(t, limiter.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond, "突发额度内不应阻塞")

	// 第4次需等待补充（10/s => 约100ms）
	start = time.Now()
	assert.NoError(t, limiter.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

// TestTokenBucketLimiter_Refill 验证令牌随时间补充
func TestTokenBucketLimiter_Refill(t *testing.T) {
	limiter := gateway.NewTokenBucketLimiter(100, 1)
	ctx := context.Background()

	assert.NoError(t, limiter.Wait(ctx))
	time.Sleep(30 * time.Millisecond) // 100/s => 30ms 足够补满1个

	start := time.Now()
	assert.NoError(t, limiter.Wait(ctx))
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

// TestTokenBucketLimiter_CancelWhileWaiting 验证等待期间取消立即返回
func TestTokenBucketLimiter_CancelWhileWaiting(t *testing.T) {
	limiter := gateway.NewTokenBucketLimiter(0.1, 1) // 补充极慢
	assert.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

// TestTokenBucketLimiter_DefensiveDefaults 非法参数回落到最小可用值
func TestTokenBucketLimiter_DefensiveDefaults(t *testing.T) {
	limiter := gateway.NewTokenBucketLimiter(-1, 0)
	assert.NoError(t, limiter.Wait(context.Background()))
}
