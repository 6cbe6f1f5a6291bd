package middleware

import (
	"encoding/hex"
	"log"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/blake2b"
)

const IPHashKey = "ip_hash"

// IPHash 计算客户端 IP 的加盐哈希并放进请求上下文。
// 原始 IP 不落库、不打日志，哈希只用于事后追溯滥用。
func IPHash(salt string) gin.HandlerFunc {
	key := []byte(salt)
	if len(key) > 64 {
		key = key[:64] // blake2b 密钥上限 64 字节
	}
	return func(c *gin.Context) {
		h, err := blake2b.New256(key)
		if err != nil {
			log.Printf("Failed to init ip hash: %v", err)
			c.Set(IPHashKey, "")
			c.Next()
			return
		}
		h.Write([]byte(c.ClientIP()))
		c.Set(IPHashKey, hex.EncodeToString(h.Sum(nil)))
		c.Next()
	}
}
