package handlers

import (
	"io"
	"net/http"
	"strconv"

	"anonboard/internal/realtime"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

type StreamHandler struct {
	hub *realtime.Hub
}

func NewStreamHandler(hub *realtime.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

func setStreamHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", sse.ContentType)
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
}

// Posts 首页帖子流。连接时先推一份当前物化窗口，之后逐条推变更。
func (s *StreamHandler) Posts(c *gin.Context) {
	setStreamHeaders(c)

	ch, cancel := s.hub.SubscribePosts()
	defer cancel()

	posts, total := s.hub.FrontPage()
	if err := sse.Encode(c.Writer, sse.Event{
		Event: "snapshot",
		Data:  gin.H{"posts": posts, "count": total},
	}); err != nil {
		return
	}
	c.Writer.Flush()

	s.pump(c, ch)
}

// Comments 某帖的评论流。连接时先推当前评论快照，补上页面渲染到
// 建连之间的空档，之后逐条推变更。
func (s *StreamHandler) Comments(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	setStreamHeaders(c)

	ch, comments, cancel := s.hub.SubscribeComments(uint(id))
	defer cancel()

	if err := sse.Encode(c.Writer, sse.Event{
		Event: "snapshot",
		Data:  gin.H{"comments": comments, "count": len(comments)},
	}); err != nil {
		return
	}
	c.Writer.Flush()

	s.pump(c, ch)
}

// pump 把事件写给客户端，直到客户端断开或通道关闭。
// 客户端断开时 cancel 立即执行，不留悬挂的订阅。
func (s *StreamHandler) pump(c *gin.Context, ch <-chan sse.Event) {
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			if err := sse.Encode(w, ev); err != nil {
				return false
			}
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
