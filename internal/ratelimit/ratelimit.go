// Package ratelimit 实现滑动窗口限频：按动作类型维护一份最近尝试的时间戳
// 列表，窗口外的条目在每次检查前被剪掉。这是乐观的浏览器侧配额提示，
// 存储挂在会话 cookie 上，同一浏览器多标签页并发提交时存在覆盖竞争，
// 与原始需求中 localStorage 的多标签页竞争同级，可接受。
package ratelimit

import (
	"fmt"
	"time"
)

type Action string

const (
	ActionPost    Action = "post"
	ActionComment Action = "comment"
)

// Rule 某类动作的窗口容量。
type Rule struct {
	Capacity int
	Window   time.Duration
}

// DefaultRules 发帖 3 次/分钟，评论 10 次/分钟。
var DefaultRules = map[Action]Rule{
	ActionPost:    {Capacity: 3, Window: time.Minute},
	ActionComment: {Capacity: 10, Window: time.Minute},
}

var storageKeys = map[Action]string{
	ActionPost:    "post-rate-limit",
	ActionComment: "comment-rate-limit",
}

// Info 一次检查的结果。TimeUntilReset 只在被拒绝或窗口非空时有意义。
type Info struct {
	IsAllowed      bool
	Remaining      int
	TimeUntilReset time.Duration
	Message        string
}

// Store 时间戳列表的持久化接口。生产实现挂在会话上，测试用内存实现。
type Store interface {
	Load(key string) []int64
	Save(key string, stamps []int64)
}

type Limiter struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Limiter {
	return NewWithClock(store, time.Now)
}

// NewWithClock 注入时钟，测试可以模拟窗口流逝。
func NewWithClock(store Store, now func() time.Time) *Limiter {
	return &Limiter{store: store, now: now}
}

// CheckAndConsume 检查并占用一次配额。被拒绝时不写入。
func (l *Limiter) CheckAndConsume(action Action) Info {
	rule := DefaultRules[action]
	key := storageKeys[action]
	now := l.now().UnixMilli()

	stamps := pruneWindow(l.store.Load(key), now, rule.Window)

	if len(stamps) >= rule.Capacity {
		return l.denied(action, stamps, now, rule)
	}

	stamps = append(stamps, now)
	l.store.Save(key, stamps)

	return Info{
		IsAllowed: true,
		Remaining: rule.Capacity - len(stamps),
	}
}

// PeekStatus 只读查询当前配额状态，不占用次数也不写回。
func (l *Limiter) PeekStatus(action Action) Info {
	rule := DefaultRules[action]
	key := storageKeys[action]
	now := l.now().UnixMilli()

	stamps := pruneWindow(l.store.Load(key), now, rule.Window)

	if len(stamps) >= rule.Capacity {
		return l.denied(action, stamps, now, rule)
	}

	info := Info{
		IsAllowed: true,
		Remaining: rule.Capacity - len(stamps),
	}
	if len(stamps) > 0 {
		info.TimeUntilReset = untilReset(stamps, now, rule.Window)
	}
	return info
}

func (l *Limiter) denied(action Action, stamps []int64, now int64, rule Rule) Info {
	reset := untilReset(stamps, now, rule.Window)
	label := "发布"
	if action == ActionComment {
		label = "评论"
	}
	return Info{
		IsAllowed:      false,
		Remaining:      0,
		TimeUntilReset: reset,
		Message:        fmt.Sprintf("%s过于频繁，请在 %d 秒后重试", label, int(reset.Seconds())+1),
	}
}

// pruneWindow 剪掉窗口外的时间戳。列表按写入顺序单调递增。
func pruneWindow(stamps []int64, now int64, window time.Duration) []int64 {
	kept := stamps[:0:0]
	for _, ts := range stamps {
		if now-ts < window.Milliseconds() {
			kept = append(kept, ts)
		}
	}
	return kept
}

// untilReset 距最早一条尝试滑出窗口还有多久。
func untilReset(stamps []int64, now int64, window time.Duration) time.Duration {
	if len(stamps) == 0 {
		return 0
	}
	oldest := stamps[0]
	remain := oldest + window.Milliseconds() - now
	if remain < 0 {
		remain = 0
	}
	return time.Duration(remain) * time.Millisecond
}
