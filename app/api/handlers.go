package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rishabhpatre/ai-news-agent/app/database"
	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/metrics"
	"github.com/rishabhpatre/ai-news-agent/app/tasks"
)

const (
	defaultListLimit    = 20
	maxListLimit        = 100
	defaultFailureRange = 7
)

func NewHandler(store database.DigestStore, trigger RunTrigger, m *metrics.Collector, sourceCount int, version string) *Handler {
	return &Handler{
		store:       store,
		trigger:     trigger,
		metrics:     m,
		sourceCount: sourceCount,
		version:     version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
		"sources":   h.sourceCount,
	}

	if h.trigger != nil {
		health["run_in_progress"] = h.trigger.Running()
	}

	if latest, err := h.store.LatestDigest(c.Request.Context()); err == nil && latest != nil {
		health["latest_digest"] = gin.H{
			"id":           latest.ID,
			"generated_at": latest.GeneratedAt.In(time.Local).Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetLatestDigest(c *gin.Context) {
	digest, err := h.store.LatestDigest(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "latest_digest", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if digest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No digest has been generated yet"})
		return
	}

	c.Header("X-Digest-ID", digest.ID)
	c.JSON(http.StatusOK, digest)
}

func (h *Handler) GetDigest(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing digest id parameter"})
		return
	}

	digest, err := h.store.GetDigest(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_digest", "digest", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if digest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Digest not found"})
		return
	}

	c.JSON(http.StatusOK, digest)
}

func (h *Handler) GetDigestFailures(c *gin.Context) {
	id := c.Param("id")

	failures, err := h.store.DigestFailures(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "digest_failures", "digest", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if len(failures) == 0 {
		digest, err := h.store.GetDigest(c.Request.Context(), id)
		if err != nil {
			slog.Error("Database error", "operation", "get_digest", "digest", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		if digest == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Digest not found"})
			return
		}
		failures = []item.Failure{}
	}

	c.JSON(http.StatusOK, gin.H{
		"digest":   id,
		"failures": failures,
	})
}

func (h *Handler) ListDigests(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultListLimit)
	if !ok {
		return
	}
	limit = min(limit, maxListLimit)

	summaries, err := h.store.ListDigests(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_digests", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if summaries == nil {
		summaries = []database.DigestSummary{}
	}

	c.JSON(http.StatusOK, gin.H{
		"digests": summaries,
		"total":   len(summaries),
	})
}

func (h *Handler) GetSourceFailures(c *gin.Context) {
	digests, ok := queryInt(c, "digests", defaultFailureRange)
	if !ok {
		return
	}

	counts, err := h.store.SourceFailureCounts(c.Request.Context(), digests)
	if err != nil {
		slog.Error("Database error", "operation", "source_failures", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if counts == nil {
		counts = []database.SourceFailures{}
	}

	c.JSON(http.StatusOK, gin.H{
		"digests": digests,
		"sources": counts,
	})
}

func (h *Handler) APITriggerRun(c *gin.Context) {
	if h.trigger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler is not running"})
		return
	}

	id, err := h.trigger.TriggerRun("api")
	if errors.Is(err, tasks.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "A digest run is already in progress"})
		return
	}
	if err != nil {
		slog.Error("Error enqueueing run task", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue run task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Digest run enqueued",
		"task": gin.H{
			"id":   id,
			"type": tasks.TaskTypeRunDigest,
		},
	})
}

// queryInt reads a positive integer query parameter. On a bad value it
// writes the 400 response and returns false.
func queryInt(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + key + " parameter"})
		return 0, false
	}
	return n, true
}
