package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gocontacts/internal/notify"
)

const collectorContextKey = "notifications"

// Notifications returns a gin middleware that attaches a notify.Collector to
// the request context. Components that report to a notify.ContextSink during
// the request land in it; handlers decide how to deliver them.
func Notifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, collector := notify.WithCollector(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Set(collectorContextKey, collector)
		c.Next()
	}
}

// DrainNotifications returns and clears the notifications collected so far
// for this request. It returns nil when the Notifications middleware is not
// installed.
func DrainNotifications(c *gin.Context) []notify.Notification {
	if v, ok := c.Get(collectorContextKey); ok {
		if collector, ok := v.(*notify.Collector); ok {
			return collector.Drain()
		}
	}
	if collector, ok := notify.CollectorFrom(c.Request.Context()); ok {
		return collector.Drain()
	}
	return nil
}
