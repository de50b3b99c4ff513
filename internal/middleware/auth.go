package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"storefront/internal/model"

	"github.com/gin-gonic/gin"
)

const (
	// SessionCookie 管理员登录后下发的 cookie 名。
	SessionCookie = "session_token"
	adminKey      = "admin"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string, now time.Time) (*model.AdminUser, error)
}

// RequireAdmin 校验管理员会话（cookie 或 Bearer token），通过后把管理员写入上下文。
func RequireAdmin(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c)
		if token == "" {
			abortUnauthorized(c)
			return
		}
		admin, err := auth.Authenticate(c.Request.Context(), token, time.Now().UTC())
		if err != nil {
			abortUnauthorized(c)
			return
		}
		c.Set(adminKey, admin)
		c.Next()
	}
}

// SessionToken 先取 cookie，再取 Authorization: Bearer。
func SessionToken(c *gin.Context) string {
	if v, err := c.Cookie(SessionCookie); err == nil && v != "" {
		return v
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Admin 返回 RequireAdmin 写入的管理员。
func Admin(c *gin.Context) *model.AdminUser {
	v, ok := c.Get(adminKey)
	if !ok {
		return nil
	}
	admin, _ := v.(*model.AdminUser)
	return admin
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": http.StatusUnauthorized,
		"msg":  "not authenticated",
		"kind": "authentication_required",
	})
}
