package health

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// Response health check response body
type Response struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Sessions  int                    `json:"sessions"`
}

// SessionCounter reports the number of live review sessions
type SessionCounter interface {
	Len() int
}

// Handler health endpoints
type Handler struct {
	version  string
	db       *sqlx.DB
	sessions SessionCounter
}

// NewHandler creates the health handler
func NewHandler(version string, db *sqlx.DB, sessions SessionCounter) *Handler {
	return &Handler{version: version, db: db, sessions: sessions}
}

// Health reports process health and runtime stats
func (h *Handler) Health(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	sessions := 0
	if h.sessions != nil {
		sessions = h.sessions.Len()
	}

	c.JSON(http.StatusOK, Response{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Runtime: map[string]interface{}{
			"goroutines":  runtime.NumGoroutine(),
			"alloc_bytes": m.Alloc,
			"num_gc":      m.NumGC,
		},
		Sessions: sessions,
	})
}

// Readiness verifies the database is reachable
func (h *Handler) Readiness(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "database unreachable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Liveness a bare liveness probe
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
