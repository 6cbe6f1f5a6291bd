package main

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"path/filepath"
	"time"

	"anonboard/internal/config"
	"anonboard/internal/db"
	"anonboard/internal/handlers"
	"anonboard/internal/middleware"
	"anonboard/internal/realtime"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	cfg := config.MustLoad()

	// Initialize Database
	db.Init(cfg.DatabaseURL)

	// 启动实时订阅中枢：两条 LISTEN 通道 + SSE 扇出
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dial := realtime.PgxDialer(cfg.DatabaseURL)
	postsSub := realtime.NewSubscription("posts_changes", dial,
		cfg.Realtime.MaxReconnectAttempts, cfg.Realtime.ReconnectInterval)
	commentsSub := realtime.NewSubscription("comments_changes", dial,
		cfg.Realtime.MaxReconnectAttempts, cfg.Realtime.ReconnectInterval)
	hub := realtime.NewHub(db.NewLoader(), postsSub, commentsSub, cfg.PerPage)
	go hub.Run(ctx)

	// Initialize Gin
	r := gin.Default()

	// Setup Sessions（承载限频窗口，随浏览器存续）
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("anonboard_session", store))

	// Load Templates using Multitemplate
	r.HTMLRender = loadTemplates("./web/templates")

	// Static Assets
	r.Static("/static", "./web/static")

	// Middleware
	r.Use(middleware.IPHash(cfg.IPHashSalt))

	// Handlers
	postHandler := handlers.NewPostHandler(cfg.PerPage)
	streamHandler := handlers.NewStreamHandler(hub)

	// Routes
	r.GET("/", postHandler.List)
	r.GET("/p/:id", postHandler.Detail)
	r.GET("/submit", postHandler.ShowCreate)
	r.POST("/submit", postHandler.Create)
	r.POST("/p/:id/comment", postHandler.CreateComment)

	// SSE
	r.GET("/events/posts", streamHandler.Posts)
	r.GET("/events/posts/:id/comments", streamHandler.Comments)

	log.Printf("Anonboard server starting on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}

func loadTemplates(templatesDir string) multitemplate.Renderer {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(templatesDir + "/layouts/*.html")
	if err != nil {
		panic(err)
	}

	components, err := filepath.Glob(templatesDir + "/components/*.html")
	if err != nil {
		panic(err)
	}

	assemble := func(view string) []string {
		files := make([]string, 0)
		files = append(files, layouts...)
		files = append(files, components...)
		files = append(files, view)
		return files
	}

	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"timeAgo": func(t interface{}) string {
			var timeVal time.Time
			switch v := t.(type) {
			case time.Time:
				timeVal = v
			default:
				return ""
			}

			duration := time.Since(timeVal)
			seconds := int(duration.Seconds())

			if seconds < 60 {
				return "刚刚"
			} else if seconds < 3600 {
				return fmt.Sprintf("%d分钟前", seconds/60)
			} else if seconds < 86400 {
				return fmt.Sprintf("%d小时前", seconds/3600)
			} else if seconds < 2592000 {
				return fmt.Sprintf("%d天前", seconds/86400)
			} else if seconds < 31536000 {
				return fmt.Sprintf("%d个月前", seconds/2592000)
			}
			return fmt.Sprintf("%d年前", seconds/31536000)
		},
		"displayName": func(username string) string {
			if username == "" {
				return "匿名"
			}
			return username
		},
		"resetSeconds": func(d time.Duration) int {
			return int(d.Seconds()) + 1
		},
	}

	// Manual registration to ensure keys match handler expectation
	r.AddFromFilesFuncs("post/list.html", funcMap, assemble(templatesDir+"/views/post/list.html")...)
	r.AddFromFilesFuncs("post/detail.html", funcMap, assemble(templatesDir+"/views/post/detail.html")...)
	r.AddFromFilesFuncs("post/create.html", funcMap, assemble(templatesDir+"/views/post/create.html")...)
	r.AddFromFilesFuncs("error.html", funcMap, assemble(templatesDir+"/views/error.html")...)

	return r
}
