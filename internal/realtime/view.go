package realtime

import (
	"sync"

	"anonboard/internal/models"
)

// PostView 首页窗口的物化视图：未隐藏、最新在前、截断到一页大小。
// Apply 返回视图是否发生变化，重复投递同一事件是幂等的。
type PostView struct {
	mu      sync.Mutex
	perPage int
	posts   []models.Post
	total   int64
}

func NewPostView(perPage int) *PostView {
	return &PostView{perPage: perPage}
}

// Reset 用初始查询结果重建视图。初始查询可能晚于在线事件到达，
// 之后的重复事件由 Apply 的幂等性吸收。
func (v *PostView) Reset(posts []models.Post, total int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.posts = append([]models.Post(nil), posts...)
	if len(v.posts) > v.perPage {
		v.posts = v.posts[:v.perPage]
	}
	v.total = total
}

func (v *PostView) Apply(ev *PostEvent) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Op {
	case OpInsert:
		// 进入视图的条件与初始查询一致：未隐藏且尚未存在
		if ev.New == nil || ev.New.IsHidden {
			return false
		}
		if v.indexOf(ev.New.ID) >= 0 {
			return false
		}
		v.posts = append([]models.Post{*ev.New}, v.posts...)
		if len(v.posts) > v.perPage {
			v.posts = v.posts[:v.perPage]
		}
		v.total++
		return true

	case OpUpdate:
		if ev.New == nil || ev.New.IsHidden {
			// 订阅谓词不放行隐藏行，改为隐藏的更新按不可见处理
			return false
		}
		idx := v.indexOf(ev.New.ID)
		if idx < 0 {
			return false
		}
		// 原地替换，保留本地派生的评论数
		updated := *ev.New
		if updated.CommentCount == 0 {
			updated.CommentCount = v.posts[idx].CommentCount
		}
		v.posts[idx] = updated
		return true

	case OpDelete:
		if ev.Old != nil && ev.Old.IsHidden {
			return false
		}
		idx := v.indexOf(ev.ID)
		if idx < 0 {
			// 不在窗口内的删除视为无事发生
			return false
		}
		v.posts = append(v.posts[:idx], v.posts[idx+1:]...)
		if v.total > 0 {
			v.total--
		}
		return true
	}
	return false
}

// BumpCommentCount 评论增删时同步列表卡片上的计数。
func (v *PostView) BumpCommentCount(postID uint, delta int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	idx := v.indexOf(postID)
	if idx < 0 {
		return
	}
	count := v.posts[idx].CommentCount + delta
	if count < 0 {
		count = 0
	}
	v.posts[idx].CommentCount = count
}

// Snapshot 返回当前窗口的拷贝和未隐藏总数。
func (v *PostView) Snapshot() ([]models.Post, int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.Post(nil), v.posts...), v.total
}

func (v *PostView) indexOf(id uint) int {
	for i := range v.posts {
		if v.posts[i].ID == id {
			return i
		}
	}
	return -1
}

// CommentView 某一帖子下评论列表的物化视图：未隐藏、最旧在前、不截断。
type CommentView struct {
	mu       sync.Mutex
	postID   uint
	comments []models.Comment
}

func NewCommentView(postID uint) *CommentView {
	return &CommentView{postID: postID}
}

func (v *CommentView) Reset(comments []models.Comment) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.comments = append([]models.Comment(nil), comments...)
}

func (v *CommentView) Apply(ev *CommentEvent) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Op {
	case OpInsert:
		// 必须属于本帖、未隐藏、且不重复
		if ev.New == nil || ev.New.PostID != v.postID || ev.New.IsHidden {
			return false
		}
		if v.indexOf(ev.New.ID) >= 0 {
			return false
		}
		v.comments = append(v.comments, *ev.New)
		return true

	case OpUpdate:
		if ev.New == nil || ev.New.PostID != v.postID || ev.New.IsHidden {
			return false
		}
		idx := v.indexOf(ev.New.ID)
		if idx < 0 {
			return false
		}
		v.comments[idx] = *ev.New
		return true

	case OpDelete:
		if ev.Old == nil || ev.Old.PostID != v.postID {
			return false
		}
		idx := v.indexOf(ev.ID)
		if idx < 0 {
			return false
		}
		v.comments = append(v.comments[:idx], v.comments[idx+1:]...)
		return true
	}
	return false
}

func (v *CommentView) Snapshot() []models.Comment {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.Comment(nil), v.comments...)
}

func (v *CommentView) indexOf(id uint) int {
	for i := range v.comments {
		if v.comments[i].ID == id {
			return i
		}
	}
	return -1
}
