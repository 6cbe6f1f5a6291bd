package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock 可手动拨动的时钟
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	return NewWithClock(NewMemoryStore(), clock.Now), clock
}

func TestCheckAndConsumeExhaustsCapacity(t *testing.T) {
	limiter, _ := newTestLimiter()

	// 容量内的前 3 次都放行
	for i := 0; i < 3; i++ {
		info := limiter.CheckAndConsume(ActionPost)
		require.True(t, info.IsAllowed, "attempt %d", i+1)
		require.Equal(t, 2-i, info.Remaining)
	}

	// 第 4 次在同一窗口内被拒绝
	info := limiter.CheckAndConsume(ActionPost)
	require.False(t, info.IsAllowed)
	require.Equal(t, 0, info.Remaining)
	require.Greater(t, info.TimeUntilReset, time.Duration(0))
	require.Contains(t, info.Message, "秒")
}

func TestDeniedAttemptDoesNotConsume(t *testing.T) {
	limiter, clock := newTestLimiter()

	for i := 0; i < 3; i++ {
		limiter.CheckAndConsume(ActionPost)
	}
	// 被拒绝的尝试不计入窗口，不能把重置时间越推越远
	first := limiter.CheckAndConsume(ActionPost)
	clock.Advance(10 * time.Second)
	second := limiter.CheckAndConsume(ActionPost)
	require.False(t, second.IsAllowed)
	require.Equal(t, first.TimeUntilReset-10*time.Second, second.TimeUntilReset)
}

func TestWindowSlidesOpen(t *testing.T) {
	limiter, clock := newTestLimiter()

	for i := 0; i < 3; i++ {
		limiter.CheckAndConsume(ActionPost)
	}
	denied := limiter.CheckAndConsume(ActionPost)
	require.False(t, denied.IsAllowed)

	// 等到最早一条滑出窗口，至少放行一次
	clock.Advance(denied.TimeUntilReset + time.Millisecond)
	info := limiter.CheckAndConsume(ActionPost)
	require.True(t, info.IsAllowed)
}

func TestCommentCapacity(t *testing.T) {
	limiter, _ := newTestLimiter()

	for i := 0; i < 10; i++ {
		require.True(t, limiter.CheckAndConsume(ActionComment).IsAllowed)
	}
	require.False(t, limiter.CheckAndConsume(ActionComment).IsAllowed)

	// 两类动作各自独立计数
	require.True(t, limiter.CheckAndConsume(ActionPost).IsAllowed)
}

func TestPeekStatusIsReadOnly(t *testing.T) {
	limiter, _ := newTestLimiter()

	for i := 0; i < 10; i++ {
		info := limiter.PeekStatus(ActionPost)
		require.True(t, info.IsAllowed)
		require.Equal(t, 3, info.Remaining)
	}

	limiter.CheckAndConsume(ActionPost)
	info := limiter.PeekStatus(ActionPost)
	require.True(t, info.IsAllowed)
	require.Equal(t, 2, info.Remaining)
	require.Greater(t, info.TimeUntilReset, time.Duration(0))
}

func TestExactCapacityBoundaryDenied(t *testing.T) {
	limiter, _ := newTestLimiter()

	// 恰好到达容量即拒绝，不向调用方取整
	limiter.CheckAndConsume(ActionPost)
	limiter.CheckAndConsume(ActionPost)
	third := limiter.CheckAndConsume(ActionPost)
	require.True(t, third.IsAllowed)
	require.Equal(t, 0, third.Remaining)

	require.False(t, limiter.PeekStatus(ActionPost).IsAllowed)
}
