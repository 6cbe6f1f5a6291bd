package db

import (
	"anonboard/internal/models"
)

// Loader 给实时层提供按需回查能力：事件载荷超限被裁剪时按 id 取行快照，
// 以及评论视图首次建立时取初始列表。
type Loader struct{}

func NewLoader() Loader {
	return Loader{}
}

func (Loader) LoadPost(id uint) (*models.Post, error) {
	var post models.Post
	if err := DB.First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (Loader) LoadComment(id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := DB.First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// LoadComments 返回某帖下全部未隐藏评论，按时间正序。
func (Loader) LoadComments(postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := DB.Where("post_id = ? AND is_hidden = ?", postID, false).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

// FrontPage 返回首页窗口内的帖子（未隐藏、最新在前）和未隐藏总数。
func (Loader) FrontPage(perPage int) ([]models.Post, int64, error) {
	var total int64
	if err := DB.Model(&models.Post{}).Where("is_hidden = ?", false).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []models.Post
	if err := DB.Where("is_hidden = ?", false).
		Order("created_at DESC").
		Limit(perPage).
		Find(&posts).Error; err != nil {
		return nil, 0, err
	}

	if err := FillCommentCounts(posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// FillCommentCounts 批量填充帖子的未隐藏评论数，一页一条 GROUP BY 查询。
func FillCommentCounts(posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	type countRow struct {
		PostID uint
		Count  int
	}
	var rows []countRow
	if err := DB.Model(&models.Comment{}).
		Select("post_id, COUNT(*) as count").
		Where("post_id IN ? AND is_hidden = ?", ids, false).
		Group("post_id").
		Scan(&rows).Error; err != nil {
		return err
	}

	counts := make(map[uint]int, len(rows))
	for _, r := range rows {
		counts[r.PostID] = r.Count
	}
	for i := range posts {
		posts[i].CommentCount = counts[posts[i].ID]
	}
	return nil
}
