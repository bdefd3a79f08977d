package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tradewind/tradewind/internal/learning"
)

// busEvent is one message surfaced over the event stream.
type busEvent struct {
	ConversationID string `json:"conversation_id"`
	From           string `json:"from"`
	To             string `json:"to"`
	Kind           string `json:"kind"`
	Summary        string `json:"summary"`
}

// handleSSE streams new bus activity to the client by polling the global
// history.
func handleSSE(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		lastSeen := len(opts.Bus.GlobalHistory())

		ctx := c.Request.Context()
		ticker := time.NewTicker(2 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				history := opts.Bus.GlobalHistory()
				if len(history) <= lastSeen {
					continue
				}
				for _, m := range history[lastSeen:] {
					writeSSE(c.Writer, "message", busEvent{
						ConversationID: m.ConversationID,
						From:           m.From,
						To:             m.To,
						Kind:           string(m.Kind),
						Summary:        m.Summary(),
					})
				}
				lastSeen = len(history)
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}

// learningContext builds a recommendation query from request parameters.
func learningContext(c *gin.Context) learning.RecommendContext {
	rc := learning.RecommendContext{}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rc.Limit = n
		}
	}
	if v := c.Query("min_score"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			rc.MinScore = f
		}
	}
	if v := c.Query("min_delivery"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			rc.MinDelivery = f
		}
	}
	if v := c.Query("min_success_rate"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			rc.MinSuccessRate = f
		}
	}
	return rc
}
