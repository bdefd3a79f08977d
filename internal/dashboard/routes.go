package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tradewind/tradewind/internal/agent"
)

// registerRoutes sets up the JSON API on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	api := router.Group("/api")

	api.POST("/requests", handleIntake(opts))
	api.GET("/conversations", handleConversations(opts))
	api.GET("/conversations/:id", handleConversation(opts))
	api.GET("/conversations/:id/history", handleHistory(opts))
	api.POST("/conversations/:id/cancel", handleCancel(opts))
	api.GET("/history", handleGlobalHistory(opts))
	api.GET("/scorecards", handleScorecards(opts))
	api.GET("/scorecards/:id", handleScorecard(opts))
	api.GET("/recommendations", handleRecommendations(opts))
	api.GET("/digest", handleDigest(opts))
	api.GET("/analytics", handleAnalytics(opts))
	api.GET("/events", handleSSE(opts))
}

// handleIntake is the procurement-intake call: accept a request, start a
// conversation, answer with its id.
func handleIntake(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req agent.ProcurementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		conversationID, err := opts.Sup.Initiate(c.Request.Context(), req, "")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"conversation_id": conversationID})
	}
}

func handleConversations(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"conversations": opts.Tracer.Conversations()})
	}
}

func handleConversation(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, ok := opts.Tracer.Conversation(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown conversation"})
			return
		}
		c.JSON(http.StatusOK, conv)
	}
}

func handleHistory(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries := opts.Tracer.History(c.Param("id"))
		if len(entries) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown conversation"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"history": entries})
	}
}

func handleCancel(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, ok := opts.Tracer.Conversation(id); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown conversation"})
			return
		}
		opts.Bus.Cancel(id)
		opts.Sup.MarkCancelled(id)
		c.JSON(http.StatusOK, gin.H{"conversation_id": id, "status": "cancelled"})
	}
}

func handleGlobalHistory(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"history": opts.Tracer.GlobalHistory()})
	}
}

func handleScorecards(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids := opts.Engine.SupplierIDs()
		cards := make([]any, 0, len(ids))
		for _, id := range ids {
			if card, ok := opts.Engine.Scorecard(id); ok {
				cards = append(cards, card)
			}
		}
		c.JSON(http.StatusOK, gin.H{"scorecards": cards})
	}
}

func handleScorecard(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		card, ok := opts.Engine.Scorecard(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no recorded outcomes for supplier"})
			return
		}
		c.JSON(http.StatusOK, card)
	}
}

func handleRecommendations(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"recommendations": opts.Engine.Recommend(learningContext(c)),
		})
	}
}

func handleDigest(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, opts.Tracer.BuildDigest())
	}
}

func handleAnalytics(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Analyzer == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analytics requires a configured database"})
			return
		}
		report, err := opts.Analyzer.BuildReport()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}
