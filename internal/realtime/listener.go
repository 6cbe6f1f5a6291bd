package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// State 订阅所处的阶段。
type State int

const (
	StateConnecting State = iota
	StateSubscribed
	StateReconnecting
	StateClosed // 终态：不再自动恢复
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ErrMaxReconnectAttempts 重试次数用尽后的终态错误。
var ErrMaxReconnectAttempts = errors.New("realtime: max reconnect attempts reached")

// Conn 一条 LISTEN 连接。生产实现包装 pgx，测试注入假连接。
type Conn interface {
	Listen(ctx context.Context, channel string) error
	WaitForNotification(ctx context.Context) (payload string, err error)
	Close(ctx context.Context) error
}

// Dialer 建立一条新连接。
type Dialer func(ctx context.Context) (Conn, error)

// Subscription 单个通知通道的订阅，带显式重连状态机：
// Connecting → Subscribed → {Error → Reconnecting → Subscribed | Closed}。
// 连续失败按指数退避重试，超过上限进入终态并关闭事件通道；
// 成功收到一条消息即把重试计数清零。
type Subscription struct {
	channel      string
	dial         Dialer
	maxAttempts  int
	baseInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) bool

	events chan string

	mu    sync.Mutex
	state State
	err   error
}

// SubscriptionOption 测试用注入点。
type SubscriptionOption func(*Subscription)

// WithSleep 替换退避等待，测试不走真实计时器。
func WithSleep(sleep func(ctx context.Context, d time.Duration) bool) SubscriptionOption {
	return func(s *Subscription) { s.sleep = sleep }
}

func NewSubscription(channel string, dial Dialer, maxAttempts int, baseInterval time.Duration, opts ...SubscriptionOption) *Subscription {
	s := &Subscription{
		channel:      channel,
		dial:         dial,
		maxAttempts:  maxAttempts,
		baseInterval: baseInterval,
		sleep:        sleepCtx,
		events:       make(chan string, 64),
		state:        StateConnecting,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events 按到达顺序吐出原始载荷。订阅进入终态后通道关闭。
func (s *Subscription) Events() <-chan string {
	return s.events
}

func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err 终态原因。ctx 取消时为 ctx 的错误，重试用尽时为 ErrMaxReconnectAttempts。
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run 驱动订阅直到 ctx 取消或重试用尽。阻塞调用，通常放在独立 goroutine。
func (s *Subscription) Run(ctx context.Context) {
	defer close(s.events)

	attempts := 0
	for {
		err := s.serve(ctx, &attempts)
		if ctx.Err() != nil {
			s.terminate(ctx.Err())
			return
		}

		attempts++
		if attempts > s.maxAttempts {
			log.Printf("Realtime channel %s: giving up after %d attempts: %v", s.channel, s.maxAttempts, err)
			s.terminate(fmt.Errorf("%w: last error: %v", ErrMaxReconnectAttempts, err))
			return
		}

		// 指数退避：基础间隔按失败次数翻倍
		delay := s.baseInterval << (attempts - 1)
		log.Printf("Realtime channel %s: reconnecting in %v (attempt %d/%d): %v", s.channel, delay, attempts, s.maxAttempts, err)
		s.setState(StateReconnecting)
		if !s.sleep(ctx, delay) {
			s.terminate(ctx.Err())
			return
		}
	}
}

// serve 建连、订阅并循环收取通知，返回导致中断的错误。
func (s *Subscription) serve(ctx context.Context, attempts *int) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if err := conn.Listen(ctx, s.channel); err != nil {
		return err
	}
	s.setState(StateSubscribed)
	log.Printf("Realtime channel %s: subscribed", s.channel)

	for {
		payload, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		// 收到消息说明链路健康，重试计数归零
		*attempts = 0

		select {
		case s.events <- payload:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Subscription) terminate(err error) {
	s.mu.Lock()
	s.state = StateClosed
	s.err = err
	s.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
