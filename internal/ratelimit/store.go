package ratelimit

import (
	"encoding/json"
	"log"

	"github.com/gin-contrib/sessions"
)

// MemoryStore 进程内实现，测试和无会话场景使用。
type MemoryStore struct {
	data map[string][]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]int64)}
}

func (m *MemoryStore) Load(key string) []int64 {
	return m.data[key]
}

func (m *MemoryStore) Save(key string, stamps []int64) {
	m.data[key] = stamps
}

// SessionStore 把时间戳列表放进会话 cookie，随浏览器存续，
// 跨页面加载可见，不跨设备同步——对应原方案的 localStorage 作用域。
type SessionStore struct {
	session sessions.Session
}

func NewSessionStore(session sessions.Session) *SessionStore {
	return &SessionStore{session: session}
}

func (s *SessionStore) Load(key string) []int64 {
	raw, ok := s.session.Get(key).(string)
	if !ok || raw == "" {
		return nil
	}
	var stamps []int64
	if err := json.Unmarshal([]byte(raw), &stamps); err != nil {
		// 会话里的数据损坏就当作空窗口重新开始
		return nil
	}
	return stamps
}

func (s *SessionStore) Save(key string, stamps []int64) {
	raw, err := json.Marshal(stamps)
	if err != nil {
		return
	}
	s.session.Set(key, string(raw))
	if err := s.session.Save(); err != nil {
		log.Printf("Failed to save rate limit window to session: %v", err)
	}
}
