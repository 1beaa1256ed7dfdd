package node

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docstore/internal/document"
	"docstore/internal/quorum"
	"docstore/internal/storage"
)

// adminRouter builds the admin HTTP API:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /docs
//	GET    /docs/:id
//	PUT    /docs/:id
//	DELETE /docs/:id?rev=&global=
//	POST   /docs/:id/reconcile
func (n *Node) adminRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(n.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "node_id": n.cfg.NodeID})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/docs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ids": n.store.IDs()})
	})
	r.GET("/docs/:id", n.handleGetDocument)
	r.PUT("/docs/:id", n.handlePutDocument)
	r.DELETE("/docs/:id", n.handleDeleteDocument)
	r.POST("/docs/:id/reconcile", n.handleReconcile)
	return r
}

// requestLogger writes one structured line per request and tags it with a
// request id.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := uuid.NewString()
		c.Set("request_id", reqID)
		c.Writer.Header().Set("X-Request-ID", reqID)

		c.Next()

		logger.Debug("http_request",
			"rid", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (n *Node) handleGetDocument(c *gin.Context) {
	body := n.store.Get(c.Param("id"))
	if body == nil || body.Deleted() {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, body)
}

func (n *Node) handlePutDocument(c *gin.Context) {
	id := c.Param("id")
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	body, err := document.ParseBody(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if bodyID := body.ID(); bodyID != "" && bodyID != id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document id does not match path"})
		return
	}
	body[document.KeyID] = id

	stored, err := n.Put(c.Request.Context(), body)
	if errors.Is(err, quorum.ErrNotMet) {
		c.JSON(http.StatusAccepted, gin.H{"document": stored, "error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(httpStatusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (n *Node) handleDeleteDocument(c *gin.Context) {
	global, _ := strconv.ParseBool(c.DefaultQuery("global", "false"))
	tomb, err := n.store.Delete(c.Param("id"), c.Query("rev"), global)
	if err != nil {
		c.JSON(httpStatusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tomb)
}

func (n *Node) handleReconcile(c *gin.Context) {
	result, err := n.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(httpStatusFor(err), gin.H{"error": err.Error()})
		return
	}
	if result.Winner == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	stale := make([]string, 0, len(result.Stale))
	for replica := range result.Stale {
		stale = append(stale, replica)
	}
	c.JSON(http.StatusOK, gin.H{
		"document": result.Winner,
		"stale":    stale,
		"conflict": result.HasConflict(),
		"skipped":  len(result.Skipped),
	})
}

func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, storage.ErrGone):
		return http.StatusGone
	case errors.Is(err, document.ErrNotObject):
		return http.StatusBadRequest
	case errors.Is(err, quorum.ErrNotMet):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}
