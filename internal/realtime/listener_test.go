package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptConn 按脚本吐出载荷，脚本耗尽后返回错误。
type scriptConn struct {
	payloads []string
	failWith error
	closed   bool
}

func (c *scriptConn) Listen(ctx context.Context, channel string) error {
	return nil
}

func (c *scriptConn) WaitForNotification(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(c.payloads) == 0 {
		return "", c.failWith
	}
	payload := c.payloads[0]
	c.payloads = c.payloads[1:]
	return payload, nil
}

func (c *scriptConn) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

func noSleep(delays *[]time.Duration) SubscriptionOption {
	return WithSleep(func(ctx context.Context, d time.Duration) bool {
		*delays = append(*delays, d)
		return ctx.Err() == nil
	})
}

func TestSubscriptionTerminatesAfterMaxAttempts(t *testing.T) {
	dials := 0
	dial := func(ctx context.Context) (Conn, error) {
		dials++
		return nil, errors.New("connection refused")
	}

	var delays []time.Duration
	sub := NewSubscription("posts_changes", dial, 5, time.Second, noSleep(&delays))
	sub.Run(context.Background())

	require.Equal(t, 6, dials) // 首次 + 5 次重试
	require.Equal(t, StateClosed, sub.State())
	require.ErrorIs(t, sub.Err(), ErrMaxReconnectAttempts)

	// 指数退避：基础间隔逐次翻倍
	require.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
	}, delays)

	// 终态后事件通道关闭
	_, ok := <-sub.Events()
	require.False(t, ok)
}

func TestSubscriptionDeliversInArrivalOrder(t *testing.T) {
	conn := &scriptConn{payloads: []string{"a", "b", "c"}, failWith: errors.New("gone")}
	dialed := false
	dial := func(ctx context.Context) (Conn, error) {
		if dialed {
			return nil, errors.New("down")
		}
		dialed = true
		return conn, nil
	}

	var delays []time.Duration
	sub := NewSubscription("posts_changes", dial, 2, time.Second, noSleep(&delays))

	done := make(chan struct{})
	go func() {
		sub.Run(context.Background())
		close(done)
	}()

	var got []string
	for payload := range sub.Events() {
		got = append(got, payload)
	}
	<-done

	require.Equal(t, []string{"a", "b", "c"}, got)
	require.True(t, conn.closed)
}

func TestSubscriptionResetsAttemptsOnReceipt(t *testing.T) {
	// 两次建连失败后成功收到一条消息，之后再失败时退避应从头开始
	step := 0
	dial := func(ctx context.Context) (Conn, error) {
		step++
		switch step {
		case 1, 2:
			return nil, errors.New("refused")
		case 3:
			return &scriptConn{payloads: []string{"ok"}, failWith: errors.New("dropped")}, nil
		default:
			return nil, errors.New("refused again")
		}
	}

	var delays []time.Duration
	sub := NewSubscription("posts_changes", dial, 2, time.Second, noSleep(&delays))

	go func() {
		for range sub.Events() {
		}
	}()
	sub.Run(context.Background())

	require.Equal(t, StateClosed, sub.State())
	// 前两次失败退避 1s、2s；收到消息后计数归零，后续失败重新从 1s 起步
	require.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 1 * time.Second, 2 * time.Second,
	}, delays)
}

func TestSubscriptionStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	dial := func(ctx context.Context) (Conn, error) {
		return &scriptConn{payloads: []string{"one"}, failWith: errors.New("gone")}, nil
	}

	slept := make(chan struct{})
	sub := NewSubscription("posts_changes", dial, 5, time.Second, WithSleep(func(ctx context.Context, d time.Duration) bool {
		select {
		case slept <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return false
	}))

	go func() {
		for range sub.Events() {
		}
	}()

	done := make(chan struct{})
	go func() {
		sub.Run(ctx)
		close(done)
	}()

	<-slept // 等到订阅进入退避等待
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop on context cancel")
	}
	require.Equal(t, StateClosed, sub.State())
	require.ErrorIs(t, sub.Err(), context.Canceled)
}
