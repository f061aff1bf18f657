package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "supplyhub/internal/core/context"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
)

// Actor records who operates the request. The host application
// authenticates its operators and forwards their identity in headers;
// requests without them run as "system".
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(HeaderActorID))
		name := strings.TrimSpace(c.GetHeader(HeaderActorName))
		if name == "" {
			name = actorID
		}
		if name != "" {
			ctx := appctx.WithActor(c.Request.Context(), &appctx.Actor{ID: actorID, Name: name})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
