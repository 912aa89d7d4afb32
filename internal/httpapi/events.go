package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"provcore/pkg/domain"
)

const heartbeatInterval = 15 * time.Second

// handleEvents streams registry notifications as server-sent events.
// The types query parameter narrows the stream to a comma separated
// list of event types and product_id pins it to one product. Delivery
// is best effort; a slow consumer loses events rather than stalling
// the registry.
func (s *Server) handleEvents(c *gin.Context) {
	var productID uint64
	if raw := strings.TrimSpace(c.Query("product_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "product_id must be a positive integer")
			return
		}
		productID = id
	}
	types := make(map[domain.EventType]bool)
	for _, part := range strings.Split(c.Query("types"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			types[domain.EventType(part)] = true
		}
	}

	ch := s.events.Subscribe(c.Request.Context())

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("Content-Type", "text/event-stream")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-ch:
			if !ok {
				return false
			}
			if len(types) > 0 && !types[event.Type] {
				return true
			}
			if productID != 0 && event.ProductID != productID {
				return true
			}
			c.SSEvent(string(event.Type), event)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}
