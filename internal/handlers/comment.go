package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"anonboard/internal/db"
	"anonboard/internal/middleware"
	"anonboard/internal/models"
	"anonboard/internal/ratelimit"
	"anonboard/internal/validation"

	"github.com/gin-gonic/gin"
)

// CreateComment 在某帖下发表评论
func (h *PostHandler) CreateComment(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		RenderError(c, http.StatusNotFound, "帖子不存在")
		return
	}
	postID := uint(id)

	var post models.Post
	if err := db.DB.Where("id = ? AND is_hidden = ?", postID, false).First(&post).Error; err != nil {
		RenderError(c, http.StatusNotFound, "帖子不存在")
		return
	}

	body := c.PostForm("body")
	username := c.PostForm("username")

	bodyRes := validation.ValidateField(body, validation.FieldComment, true)
	usernameRes := validation.ValidateField(username, validation.FieldUsername, true)

	if !bodyRes.IsValid || !usernameRes.IsValid {
		h.renderDetail(c, postID, http.StatusBadRequest, gin.H{
			"CommentError":    bodyRes.Error,
			"UsernameError":   usernameRes.Error,
			"FormCommentBody": body,
			"FormUsername":    username,
		})
		return
	}

	info := limiterFor(c).CheckAndConsume(ratelimit.ActionComment)
	if !info.IsAllowed {
		h.renderDetail(c, postID, http.StatusTooManyRequests, gin.H{
			"RateError":       info.Message,
			"RateInfo":        info,
			"FormCommentBody": body,
			"FormUsername":    username,
		})
		return
	}

	comment := models.Comment{
		PostID:   post.ID,
		Body:     bodyRes.SanitizedValue,
		Username: usernameRes.SanitizedValue,
		IPHash:   c.GetString(middleware.IPHashKey),
	}

	if err := db.DB.Create(&comment).Error; err != nil {
		h.renderDetail(c, postID, http.StatusInternalServerError, gin.H{
			"RateError":       "评论失败，请稍后重试",
			"FormCommentBody": body,
			"FormUsername":    username,
		})
		return
	}

	c.Redirect(http.StatusFound, fmt.Sprintf("/p/%d#comment-%d", post.ID, comment.ID))
}
