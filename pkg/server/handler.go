package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mikeboe/query-orchestrator/pkg/backend"
	"github.com/mikeboe/query-orchestrator/pkg/core"
	"github.com/mikeboe/query-orchestrator/pkg/orchestration"
)

type Handler struct {
	Orchestrator *orchestration.Orchestrator
	Backends     *backend.Coordinator
}

func NewHandler(o *orchestration.Orchestrator, backends *backend.Coordinator) *Handler {
	return &Handler{Orchestrator: o, Backends: backends}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.POST("/mcp", h.MCPHandler)
	api := r.Group("/api")
	{
		api.POST("/query", h.query)
		api.POST("/query/stream", h.queryStream)
		api.GET("/tools", h.listTools)
		api.GET("/backends", h.listBackends)
		api.GET("/scopes", h.listScopes)
		api.POST("/documents", h.indexDocument)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) query(c *gin.Context) {
	var req core.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Orchestrator.Handle(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) queryStream(c *gin.Context) {
	var req core.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Transfer-Encoding", "chunked")

	for chunk, err := range h.Orchestrator.HandleStream(c.Request.Context(), &req) {
		if err != nil {
			// Cancellation mid-stream; nothing useful left to send.
			return
		}

		data, err := json.Marshal(chunk)
		if err != nil {
			return
		}
		_, _ = c.Writer.Write([]byte("data: "))
		_, _ = c.Writer.Write(data)
		_, _ = c.Writer.Write([]byte("\n\n"))
		c.Writer.Flush()
	}
}

func (h *Handler) listTools(c *gin.Context) {
	tools := h.Orchestrator.Tools()
	if tools == nil {
		tools = []core.ToolInfo{}
	}
	c.JSON(http.StatusOK, tools)
}

func (h *Handler) listBackends(c *gin.Context) {
	c.JSON(http.StatusOK, h.Backends.Describe())
}

func (h *Handler) listScopes(c *gin.Context) {
	scopes, err := h.Orchestrator.Scopes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if scopes == nil {
		scopes = []string{}
	}
	c.JSON(http.StatusOK, scopes)
}

func (h *Handler) indexDocument(c *gin.Context) {
	var doc backend.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if doc.URL == "" || doc.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url and content are required"})
		return
	}

	if err := h.Backends.Index(c.Request.Context(), doc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": doc.URL, "indexed": true})
}
