package realtime

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"sync"
	"time"

	"anonboard/internal/models"
	"anonboard/internal/utils"

	"github.com/gin-contrib/sse"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Loader 给视图提供初始数据和退化事件的按 id 回查。
type Loader interface {
	LoadPost(id uint) (*models.Post, error)
	LoadComment(id uint) (*models.Comment, error)
	LoadComments(postID uint) ([]models.Comment, error)
	FrontPage(perPage int) ([]models.Post, int64, error)
}

// Hub 消费两条订阅流（全部帖子变更、全部评论变更），按到达顺序串行
// 合并进物化视图，再把生效的变更扇出给各 SSE 订阅者。
// 每条流由单个 goroutine 消费，视图应用天然串行。
type Hub struct {
	loader   Loader
	posts    *Subscription
	comments *Subscription
	postView *PostView

	// 已计入首页评论数的事件，重复投递时只计一次。
	// 没人在房时评论事件没有视图兜底去重，全靠这份记录。
	applied *lru.Cache[string, struct{}]

	mu       sync.Mutex
	postSubs map[string]chan sse.Event
	rooms    map[uint]*commentRoom
}

// commentRoom 一个帖子详情页的评论视图和它的在线订阅者。
type commentRoom struct {
	view *CommentView
	subs map[string]chan sse.Event
}

func NewHub(loader Loader, posts, comments *Subscription, perPage int) *Hub {
	applied, err := lru.New[string, struct{}](1024)
	if err != nil {
		log.Fatalf("Failed to create applied event cache: %v", err)
	}
	return &Hub{
		loader:   loader,
		posts:    posts,
		comments: comments,
		postView: NewPostView(perPage),
		applied:  applied,
		postSubs: make(map[string]chan sse.Event),
		rooms:    make(map[uint]*commentRoom),
	}
}

// Run 启动两条订阅并消费到 ctx 取消为止。阻塞调用。
func (h *Hub) Run(ctx context.Context) {
	if posts, total, err := h.loader.FrontPage(h.postView.perPage); err != nil {
		log.Printf("Realtime hub: initial front page load failed: %v", err)
	} else {
		h.postView.Reset(posts, total)
	}

	go h.posts.Run(ctx)
	go h.comments.Run(ctx)

	postCh := h.posts.Events()
	commentCh := h.comments.Events()

	for postCh != nil || commentCh != nil {
		select {
		case payload, ok := <-postCh:
			if !ok {
				postCh = nil
				h.streamClosed("posts", h.posts.Err())
				continue
			}
			h.handlePostPayload(payload)
		case payload, ok := <-commentCh:
			if !ok {
				commentCh = nil
				h.streamClosed("comments", h.comments.Err())
				continue
			}
			h.handleCommentPayload(payload)
		case <-ctx.Done():
			return
		}
	}
	<-ctx.Done()
}

func (h *Hub) handlePostPayload(payload string) {
	ev, err := DecodePostEvent([]byte(payload))
	if err != nil {
		log.Printf("Realtime hub: dropping post event: %v", err)
		return
	}

	// 退化载荷：快照被裁剪，按 id 回查
	if ev.Op != OpDelete && ev.New == nil {
		post, err := h.loader.LoadPost(ev.ID)
		if err != nil {
			log.Printf("Realtime hub: reload post %d failed: %v", ev.ID, err)
			return
		}
		ev.New = post
	}

	if !h.postView.Apply(ev) {
		return
	}
	h.broadcastPosts(postEventMessage(ev))
}

func (h *Hub) handleCommentPayload(payload string) {
	ev, err := DecodeCommentEvent([]byte(payload))
	if err != nil {
		log.Printf("Realtime hub: dropping comment event: %v", err)
		return
	}

	if ev.Op != OpDelete && ev.New == nil {
		comment, err := h.loader.LoadComment(ev.ID)
		if err != nil {
			log.Printf("Realtime hub: reload comment %d failed: %v", ev.ID, err)
			return
		}
		ev.New = comment
	}

	postID := eventPostID(ev)
	if postID == 0 {
		return
	}

	room := h.roomFor(postID)
	if room == nil {
		// 没人在看这个帖子，仍要维护首页卡片上的评论数
		h.bumpFrontPageCount(ev, postID)
		return
	}
	if !room.view.Apply(ev) {
		return
	}
	h.bumpFrontPageCount(ev, postID)
	h.broadcastRoom(room, commentEventMessage(ev))
}

func (h *Hub) bumpFrontPageCount(ev *CommentEvent, postID uint) {
	var delta int
	switch ev.Op {
	case OpInsert:
		if ev.New == nil || ev.New.IsHidden {
			return
		}
		delta = 1
	case OpDelete:
		if ev.Old == nil || ev.Old.IsHidden {
			return
		}
		delta = -1
	default:
		return
	}

	// 同一逻辑事件只计一次
	key := fmt.Sprintf("%s:%d", ev.Op, ev.ID)
	if _, dup := h.applied.Get(key); dup {
		return
	}
	h.applied.Add(key, struct{}{})

	h.postView.BumpCommentCount(postID, delta)
}

func eventPostID(ev *CommentEvent) uint {
	if ev.New != nil {
		return ev.New.PostID
	}
	if ev.Old != nil {
		return ev.Old.PostID
	}
	return 0
}

// SubscribePosts 注册一个首页 SSE 订阅者。cancel 幂等。
func (h *Hub) SubscribePosts() (<-chan sse.Event, func()) {
	id := uuid.NewString()
	ch := make(chan sse.Event, 16)

	h.mu.Lock()
	h.postSubs[id] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.postSubs, id)
		h.mu.Unlock()
	}
}

// SubscribeComments 注册某帖详情页的 SSE 订阅者，返回事件通道和
// 订阅时刻的评论快照。页面渲染和 EventSource 建连之间到达的评论已在
// 视图里，快照把它们补给客户端；快照之后的重复事件由客户端按 id 吸收。
// 第一个订阅者到来时建房并加载初始评论列表，最后一个离开时拆房。
func (h *Hub) SubscribeComments(postID uint) (<-chan sse.Event, []CommentPayload, func()) {
	id := uuid.NewString()
	ch := make(chan sse.Event, 16)

	h.mu.Lock()
	room, ok := h.rooms[postID]
	if !ok {
		room = &commentRoom{
			view: NewCommentView(postID),
			subs: make(map[string]chan sse.Event),
		}
		h.rooms[postID] = room
		h.mu.Unlock()

		// 建房时的初始加载放在锁外，失败就从空视图开始
		if comments, err := h.loader.LoadComments(postID); err != nil {
			log.Printf("Realtime hub: initial comments load for post %d failed: %v", postID, err)
		} else {
			room.view.Reset(comments)
		}
		h.mu.Lock()
	}
	room.subs[id] = ch
	h.mu.Unlock()

	snapshot := room.view.Snapshot()
	initial := make([]CommentPayload, len(snapshot))
	for i := range snapshot {
		initial[i] = commentPayloadFrom(&snapshot[i])
	}

	return ch, initial, func() {
		h.mu.Lock()
		if room, ok := h.rooms[postID]; ok {
			delete(room.subs, id)
			if len(room.subs) == 0 {
				delete(h.rooms, postID)
			}
		}
		h.mu.Unlock()
	}
}

// FrontPage 首页窗口的当前物化状态，列表页直接读取。
func (h *Hub) FrontPage() ([]models.Post, int64) {
	return h.postView.Snapshot()
}

func (h *Hub) roomFor(postID uint) *commentRoom {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[postID]
}

func (h *Hub) broadcastPosts(ev sse.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.postSubs {
		deliver(id, ch, ev)
	}
}

func (h *Hub) broadcastRoom(room *commentRoom, ev sse.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range room.subs {
		deliver(id, ch, ev)
	}
}

// streamClosed 重试用尽的终态：给所有订阅者推一条状态事件，页面
// 显示“实时更新不可用”，不打断其他功能。
func (h *Hub) streamClosed(stream string, err error) {
	log.Printf("Realtime hub: %s stream closed: %v", stream, err)
	ev := sse.Event{
		Event: "status",
		Data:  map[string]string{"stream": stream, "state": "closed"},
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if stream == "posts" {
		for id, ch := range h.postSubs {
			deliver(id, ch, ev)
		}
		return
	}
	for _, room := range h.rooms {
		for id, ch := range room.subs {
			deliver(id, ch, ev)
		}
	}
}

// deliver 非阻塞投递：订阅者消费太慢就丢弃这条，页面刷新时自愈。
func deliver(id string, ch chan sse.Event, ev sse.Event) {
	select {
	case ch <- ev:
	default:
		log.Printf("Realtime hub: subscriber %s too slow, dropping event", id)
	}
}

func postEventMessage(ev *PostEvent) sse.Event {
	switch ev.Op {
	case OpDelete:
		return sse.Event{Event: "delete", Data: map[string]uint{"id": ev.ID}}
	case OpUpdate:
		return sse.Event{Event: "update", Data: ev.New}
	default:
		return sse.Event{Event: "insert", Data: ev.New}
	}
}

func commentEventMessage(ev *CommentEvent) sse.Event {
	switch ev.Op {
	case OpDelete:
		return sse.Event{Event: "delete", Data: map[string]uint{"id": ev.ID}}
	case OpUpdate:
		return sse.Event{Event: "update", Data: commentPayloadFrom(ev.New)}
	default:
		return sse.Event{Event: "insert", Data: commentPayloadFrom(ev.New)}
	}
}

// CommentPayload 推给浏览器的评论形态：正文在服务端渲染成安全 HTML，
// 与详情页首次渲染走同一条管线，实时插入和刷新后看到的内容一致。
type CommentPayload struct {
	ID        uint          `json:"id"`
	PostID    uint          `json:"post_id"`
	BodyHTML  template.HTML `json:"body_html"`
	Username  string        `json:"username"`
	CreatedAt time.Time     `json:"created_at"`
}

func commentPayloadFrom(c *models.Comment) CommentPayload {
	return CommentPayload{
		ID:        c.ID,
		PostID:    c.PostID,
		BodyHTML:  utils.RenderBody(c.Body),
		Username:  c.Username,
		CreatedAt: c.CreatedAt,
	}
}
