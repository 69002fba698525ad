package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"meal2list/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestCache remembers recent request fingerprints for dedup
var requestCache = struct {
	sync.RWMutex
	requests map[string]time.Time
}{
	requests: make(map[string]time.Time),
}

var cleanupOnce sync.Once

func startDeduplicationCleanup(window time.Duration) {
	cleanupOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				now := time.Now()
				requestCache.Lock()
				for k, t := range requestCache.requests {
					if now.Sub(t) > 10*window {
						delete(requestCache.requests, k)
					}
				}
				requestCache.Unlock()
			}
		}()
	})
}

// Deduplication rejects byte-identical POSTs from the same user
// arriving within window. Double-clicked generate buttons land here,
// not in a second relay call.
func Deduplication(window time.Duration) gin.HandlerFunc {
	if window <= 0 {
		window = time.Second
	}
	startDeduplicationCleanup(window)

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		bodyHash := ""
		if c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				common.LogError("failed to read request body", zap.Error(err))
				c.Next()
				return
			}
			hash := sha256.Sum256(body)
			bodyHash = hex.EncodeToString(hash[:])
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		fingerprint := c.GetString("user_id") + ":" + c.Request.Method + ":" + c.Request.URL.Path
		if bodyHash != "" {
			fingerprint += ":" + bodyHash
		}

		now := time.Now()
		requestCache.RLock()
		lastTime, exists := requestCache.requests[fingerprint]
		requestCache.RUnlock()
		if exists && now.Sub(lastTime) <= window {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, common.ErrorResponse{
				Code:    common.ErrCodeTooManyRequests,
				Message: "duplicate request",
			})
			return
		}

		requestCache.Lock()
		requestCache.requests[fingerprint] = now
		requestCache.Unlock()

		c.Next()
	}
}
