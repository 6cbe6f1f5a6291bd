package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePostEventInsert(t *testing.T) {
	payload := `{
		"table": "posts", "op": "INSERT", "id": 7,
		"new": {"id": 7, "title": "hello", "body": "world", "is_hidden": false, "created_at": "2026-08-30T10:00:00+00:00"},
		"old": null
	}`
	ev, err := DecodePostEvent([]byte(payload))
	require.NoError(t, err)
	require.Equal(t, OpInsert, ev.Op)
	require.Equal(t, uint(7), ev.ID)
	require.NotNil(t, ev.New)
	require.Equal(t, "hello", ev.New.Title)
	require.Nil(t, ev.Old)
}

func TestDecodePostEventTrimmedPayload(t *testing.T) {
	// 超限退化事件：没有 new 快照，只有 id
	ev, err := DecodePostEvent([]byte(`{"table": "posts", "op": "UPDATE", "id": 3}`))
	require.NoError(t, err)
	require.Equal(t, OpUpdate, ev.Op)
	require.Nil(t, ev.New)
}

func TestDecodePostEventDelete(t *testing.T) {
	payload := `{"table": "posts", "op": "DELETE", "id": 5, "old": {"id": 5, "is_hidden": false}}`
	ev, err := DecodePostEvent([]byte(payload))
	require.NoError(t, err)
	require.Equal(t, OpDelete, ev.Op)
	require.NotNil(t, ev.Old)
	require.Equal(t, uint(5), ev.Old.ID)

	// DELETE 缺旧行摘要视为非法
	_, err = DecodePostEvent([]byte(`{"table": "posts", "op": "DELETE", "id": 5}`))
	require.Error(t, err)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []string{
		`not json`,
		`{"table": "votes", "op": "INSERT", "id": 1}`,
		`{"table": "posts", "op": "TRUNCATE", "id": 1}`,
		`{"table": "posts", "op": "INSERT"}`,
		`{"table": "posts", "op": "INSERT", "id": 2, "new": {"title": "no id"}}`,
	}
	for _, c := range cases {
		_, err := DecodePostEvent([]byte(c))
		require.Error(t, err, c)
	}
}

func TestDecodeCommentEvent(t *testing.T) {
	payload := `{
		"table": "comments", "op": "INSERT", "id": 11,
		"new": {"id": 11, "post_id": 7, "body": "first", "is_hidden": false, "created_at": "2026-08-30T10:05:00+00:00"}
	}`
	ev, err := DecodeCommentEvent([]byte(payload))
	require.NoError(t, err)
	require.Equal(t, uint(7), ev.New.PostID)

	// 评论快照缺 post_id 无法过滤，按非法处理
	_, err = DecodeCommentEvent([]byte(`{"table": "comments", "op": "INSERT", "id": 11, "new": {"id": 11, "body": "x"}}`))
	require.Error(t, err)
}
