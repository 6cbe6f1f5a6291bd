package db

import (
	"log"

	"anonboard/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(dsn string) {
	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connection established")

	// Auto Migrate
	err = DB.AutoMigrate(
		&models.Post{},
		&models.Comment{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed")

	// 安装行变更通知触发器
	installChangeTriggers()
}

// installChangeTriggers 为 posts / comments 两张表安装 AFTER 触发器，
// 通过 pg_notify 把行级 INSERT/UPDATE/DELETE 事件推给监听方。
// NOTIFY 载荷上限约 8000 字节；正文最长 4000 字符，多字节内容编码成 JSON
// 后可能超限，这时退化为只带 id 的事件，由监听方按 id 回查快照。
func installChangeTriggers() {
	statements := []string{
		`CREATE OR REPLACE FUNCTION notify_posts_change() RETURNS trigger AS $fn$
DECLARE
	payload text;
BEGIN
	payload := json_build_object(
		'table', TG_TABLE_NAME,
		'op', TG_OP,
		'id', CASE WHEN TG_OP = 'DELETE' THEN OLD.id ELSE NEW.id END,
		'new', CASE WHEN TG_OP = 'DELETE' THEN NULL ELSE row_to_json(NEW) END,
		'old', CASE WHEN TG_OP = 'INSERT' THEN NULL ELSE json_build_object('id', OLD.id, 'is_hidden', OLD.is_hidden) END
	)::text;
	IF octet_length(payload) >= 7500 THEN
		payload := json_build_object(
			'table', TG_TABLE_NAME,
			'op', TG_OP,
			'id', CASE WHEN TG_OP = 'DELETE' THEN OLD.id ELSE NEW.id END,
			'old', CASE WHEN TG_OP = 'INSERT' THEN NULL ELSE json_build_object('id', OLD.id, 'is_hidden', OLD.is_hidden) END
		)::text;
	END IF;
	PERFORM pg_notify('posts_changes', payload);
	RETURN NULL;
END;
$fn$ LANGUAGE plpgsql`,
		`CREATE OR REPLACE FUNCTION notify_comments_change() RETURNS trigger AS $fn$
DECLARE
	payload text;
BEGIN
	payload := json_build_object(
		'table', TG_TABLE_NAME,
		'op', TG_OP,
		'id', CASE WHEN TG_OP = 'DELETE' THEN OLD.id ELSE NEW.id END,
		'new', CASE WHEN TG_OP = 'DELETE' THEN NULL ELSE row_to_json(NEW) END,
		'old', CASE WHEN TG_OP = 'INSERT' THEN NULL ELSE json_build_object('id', OLD.id, 'post_id', OLD.post_id, 'is_hidden', OLD.is_hidden) END
	)::text;
	IF octet_length(payload) >= 7500 THEN
		payload := json_build_object(
			'table', TG_TABLE_NAME,
			'op', TG_OP,
			'id', CASE WHEN TG_OP = 'DELETE' THEN OLD.id ELSE NEW.id END,
			'old', CASE WHEN TG_OP = 'INSERT' THEN NULL ELSE json_build_object('id', OLD.id, 'post_id', OLD.post_id, 'is_hidden', OLD.is_hidden) END
		)::text;
	END IF;
	PERFORM pg_notify('comments_changes', payload);
	RETURN NULL;
END;
$fn$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS posts_notify ON posts`,
		`CREATE TRIGGER posts_notify AFTER INSERT OR UPDATE OR DELETE ON posts
			FOR EACH ROW EXECUTE FUNCTION notify_posts_change()`,
		`DROP TRIGGER IF EXISTS comments_notify ON comments`,
		`CREATE TRIGGER comments_notify AFTER INSERT OR UPDATE OR DELETE ON comments
			FOR EACH ROW EXECUTE FUNCTION notify_comments_change()`,
	}

	for _, stmt := range statements {
		if err := DB.Exec(stmt).Error; err != nil {
			log.Fatalf("Failed to install change triggers: %v", err)
		}
	}
	log.Println("Change notification triggers installed")
}
