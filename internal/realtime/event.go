// Package realtime 维护数据库表切片的本地物化视图：通过 Postgres
// LISTEN/NOTIFY 订阅行级变更，在边界处解码成类型化事件，再按到达顺序
// 合并进有序列表，最后经 SSE 推给页面。
package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"

	"anonboard/internal/models"
)

type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// envelope 触发器写入 NOTIFY 的载荷结构。
// new 在载荷超限的退化事件里为空，消费方需按 id 回查。
type envelope struct {
	Table string          `json:"table"`
	Op    Operation       `json:"op"`
	ID    uint            `json:"id"`
	New   json.RawMessage `json:"new"`
	Old   json.RawMessage `json:"old"`
}

// RowRef DELETE/UPDATE 事件携带的旧行摘要，只够做过滤和定位。
type RowRef struct {
	ID       uint `json:"id"`
	PostID   uint `json:"post_id"`
	IsHidden bool `json:"is_hidden"`
}

// PostEvent 帖子表的一次行变更。New 可能为 nil（载荷退化）。
type PostEvent struct {
	Op  Operation
	ID  uint
	New *models.Post
	Old *RowRef
}

// CommentEvent 评论表的一次行变更。
type CommentEvent struct {
	Op  Operation
	ID  uint
	New *models.Comment
	Old *RowRef
}

func decodeEnvelope(payload []byte, table string) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("malformed change payload: %w", err)
	}
	if env.Table != table {
		return nil, fmt.Errorf("unexpected table %q in change payload", env.Table)
	}
	switch env.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return nil, fmt.Errorf("unknown operation %q in change payload", env.Op)
	}
	if env.ID == 0 {
		return nil, fmt.Errorf("change payload missing row id")
	}
	return &env, nil
}

func isNullJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func decodeOldRef(raw json.RawMessage) (*RowRef, error) {
	if isNullJSON(raw) {
		return nil, nil
	}
	var ref RowRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("malformed old row in change payload: %w", err)
	}
	return &ref, nil
}

// DecodePostEvent 把帖子变更载荷解码并校验成类型化事件。
// 非法载荷返回错误，由调用方记日志后丢弃，不中断订阅。
func DecodePostEvent(payload []byte) (*PostEvent, error) {
	env, err := decodeEnvelope(payload, "posts")
	if err != nil {
		return nil, err
	}

	ev := &PostEvent{Op: env.Op, ID: env.ID}
	if !isNullJSON(env.New) {
		var post models.Post
		if err := json.Unmarshal(env.New, &post); err != nil {
			return nil, fmt.Errorf("malformed post row in change payload: %w", err)
		}
		if post.ID == 0 {
			return nil, fmt.Errorf("post row in change payload missing id")
		}
		ev.New = &post
	}
	if ev.Old, err = decodeOldRef(env.Old); err != nil {
		return nil, err
	}
	if env.Op == OpDelete && ev.Old == nil {
		return nil, fmt.Errorf("delete payload missing old row")
	}
	return ev, nil
}

// DecodeCommentEvent 同 DecodePostEvent，针对评论表。
func DecodeCommentEvent(payload []byte) (*CommentEvent, error) {
	env, err := decodeEnvelope(payload, "comments")
	if err != nil {
		return nil, err
	}

	ev := &CommentEvent{Op: env.Op, ID: env.ID}
	if !isNullJSON(env.New) {
		var comment models.Comment
		if err := json.Unmarshal(env.New, &comment); err != nil {
			return nil, fmt.Errorf("malformed comment row in change payload: %w", err)
		}
		if comment.ID == 0 || comment.PostID == 0 {
			return nil, fmt.Errorf("comment row in change payload missing id or post_id")
		}
		ev.New = &comment
	}
	if ev.Old, err = decodeOldRef(env.Old); err != nil {
		return nil, err
	}
	if env.Op == OpDelete && ev.Old == nil {
		return nil, fmt.Errorf("delete payload missing old row")
	}
	return ev, nil
}
