package handlers

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"anonboard/internal/db"
	"anonboard/internal/middleware"
	"anonboard/internal/models"
	"anonboard/internal/pagination"
	"anonboard/internal/ratelimit"
	"anonboard/internal/utils"
	"anonboard/internal/validation"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	perPage int
}

func NewPostHandler(perPage int) *PostHandler {
	if perPage <= 0 {
		perPage = pagination.DefaultPerPage
	}
	return &PostHandler{perPage: perPage}
}

// limiterFor 每个请求挂在自己会话上的限频器
func limiterFor(c *gin.Context) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.NewSessionStore(sessions.Default(c)))
}

func (h *PostHandler) List(c *gin.Context) {
	// 分页参数，越界兜底在这里做，分页计算本身不修正
	page := 1
	if p := c.Query("page"); p != "" {
		if pageNum, err := strconv.Atoi(p); err == nil && pageNum > 0 {
			page = pageNum
		}
	}

	cacheKey := fmt.Sprintf("post:list:page:%d", page)
	if cachedData := utils.GetCache().Get(cacheKey); cachedData != nil {
		if hData, ok := cachedData.(gin.H); ok {
			Render(c, http.StatusOK, "post/list.html", hData)
			return
		}
	}

	var total int64
	db.DB.Model(&models.Post{}).Where("is_hidden = ?", false).Count(&total)

	p := pagination.Paginate(page, int(total), h.perPage)

	var posts []models.Post
	db.DB.Where("is_hidden = ?", false).
		Order("created_at DESC").
		Limit(p.Limit).
		Offset(p.Offset).
		Find(&posts)

	db.FillCommentCounts(posts)

	renderData := gin.H{
		"Title":       "匿名板",
		"Posts":       posts,
		"Count":       total,
		"PerPage":     h.perPage,
		"CurrentPage": page,
		"TotalPages":  p.TotalPages,
		"HasNextPage": p.HasNextPage,
		"HasPrevPage": p.HasPrevPage,
	}

	// 列表页缓存 30 秒，实时更新由 SSE 补齐
	utils.GetCache().Set(cacheKey, renderData, 30*time.Second)

	Render(c, http.StatusOK, "post/list.html", renderData)
}

func (h *PostHandler) Detail(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		RenderError(c, http.StatusNotFound, "帖子不存在")
		return
	}
	h.renderDetail(c, uint(id), http.StatusOK, nil)
}

// renderDetail 详情页渲染，也承接评论提交失败后的回显
func (h *PostHandler) renderDetail(c *gin.Context, id uint, status int, extra gin.H) {
	var post models.Post
	if err := db.DB.Where("id = ? AND is_hidden = ?", id, false).First(&post).Error; err != nil {
		RenderError(c, http.StatusNotFound, "帖子不存在")
		return
	}

	var comments []models.Comment
	db.DB.Where("post_id = ? AND is_hidden = ?", post.ID, false).
		Order("created_at ASC").
		Find(&comments)

	type RenderedComment struct {
		models.Comment
		BodyHTML template.HTML
		Floor    int
	}
	rendered := make([]RenderedComment, len(comments))
	for i, com := range comments {
		rendered[i] = RenderedComment{
			Comment:  com,
			BodyHTML: utils.RenderBody(com.Body),
			Floor:    i + 1,
		}
	}

	rateInfo := limiterFor(c).PeekStatus(ratelimit.ActionComment)

	renderData := gin.H{
		"Title":        post.Title,
		"Post":         post,
		"PostBody":     utils.RenderBody(post.Body),
		"Comments":     rendered,
		"CommentCount": len(rendered),
		"RateInfo":     rateInfo,
		"CommentMax":   validation.MaxLength(validation.FieldComment),
	}
	for k, v := range extra {
		renderData[k] = v
	}

	Render(c, status, "post/detail.html", renderData)
}

func (h *PostHandler) ShowCreate(c *gin.Context) {
	rateInfo := limiterFor(c).PeekStatus(ratelimit.ActionPost)
	Render(c, http.StatusOK, "post/create.html", gin.H{
		"Title":    "发布新帖",
		"RateInfo": rateInfo,
		"TitleMax": validation.MaxLength(validation.FieldTitle),
		"BodyMax":  validation.MaxLength(validation.FieldBody),
	})
}

func (h *PostHandler) Create(c *gin.Context) {
	title := c.PostForm("title")
	body := c.PostForm("body")
	username := c.PostForm("username")

	titleRes := validation.ValidateField(title, validation.FieldTitle, true)
	bodyRes := validation.ValidateField(body, validation.FieldBody, true)
	usernameRes := validation.ValidateField(username, validation.FieldUsername, true)

	renderForm := func(status int, extra gin.H) {
		data := gin.H{
			"Title":        "发布新帖",
			"RateInfo":     limiterFor(c).PeekStatus(ratelimit.ActionPost),
			"TitleMax":     validation.MaxLength(validation.FieldTitle),
			"BodyMax":      validation.MaxLength(validation.FieldBody),
			"FormTitle":    title,
			"FormBody":     body,
			"FormUsername": username,
		}
		for k, v := range extra {
			data[k] = v
		}
		Render(c, status, "post/create.html", data)
	}

	if !titleRes.IsValid || !bodyRes.IsValid || !usernameRes.IsValid {
		renderForm(http.StatusBadRequest, gin.H{
			"TitleError":    titleRes.Error,
			"BodyError":     bodyRes.Error,
			"UsernameError": usernameRes.Error,
		})
		return
	}

	// 限频检查通过才占用配额；这只是前置提示，恶意客户端可绕过
	info := limiterFor(c).CheckAndConsume(ratelimit.ActionPost)
	if !info.IsAllowed {
		renderForm(http.StatusTooManyRequests, gin.H{"RateError": info.Message, "RateInfo": info})
		return
	}

	post := models.Post{
		Title:    titleRes.SanitizedValue,
		Body:     bodyRes.SanitizedValue,
		Username: usernameRes.SanitizedValue,
		IPHash:   c.GetString(middleware.IPHashKey),
	}

	if err := db.DB.Create(&post).Error; err != nil {
		renderForm(http.StatusInternalServerError, gin.H{"RateError": "发布失败，请稍后重试"})
		return
	}

	// 首页窗口变了，让缓存立刻失效
	utils.GetCache().Delete("post:list:page:1")

	c.Redirect(http.StatusFound, fmt.Sprintf("/p/%d", post.ID))
}
