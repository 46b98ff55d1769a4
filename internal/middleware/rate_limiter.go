package middleware

import (
	"net/http"
	"sync"
	"time"

	"stockledger/internal/apierror"

	"github.com/gin-gonic/gin"
)

// ── Login rate limiter ────────────────────────────────────────────────────────
// The login endpoint takes a 4-digit PIN, so brute-force pressure is the main
// threat; attempts are capped per IP within a sliding window.

type rateEntry struct {
	count     int
	windowEnd time.Time
	mu        sync.Mutex
}

var (
	loginRateMap   = make(map[string]*rateEntry)
	loginRateMapMu sync.Mutex

	apiRateMap   = make(map[string]*rateEntry)
	apiRateMapMu sync.Mutex
)

// LoginRateLimiter limits PIN attempts to 10 per minute per IP.
func LoginRateLimiter() gin.HandlerFunc {
	return limitWith(&loginRateMapMu, loginRateMap, 10, time.Minute)
}

// RateLimiter returns a general-purpose sliding-window rate limiter.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return limitWith(&apiRateMapMu, apiRateMap, limit, window)
}

func limitWith(mu *sync.Mutex, entries map[string]*rateEntry, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		entry, exists := entries[ip]
		if !exists {
			entry = &rateEntry{}
			entries[ip] = entry
		}
		mu.Unlock()

		entry.mu.Lock()
		defer entry.mu.Unlock()

		now := time.Now()
		if now.After(entry.windowEnd) {
			// Reset sliding window
			entry.count = 0
			entry.windowEnd = now.Add(window)
		}

		entry.count++
		if entry.count > limit {
			c.Header("Retry-After", entry.windowEnd.Format(time.RFC1123))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("too many requests, try again shortly"))
			return
		}
		c.Next()
	}
}

// ── Purge goroutine ───────────────────────────────────────────────────────────
// Periodically removes expired entries from both rate limiter maps to prevent
// memory growth from IPs that never return.

const purgeInterval = 5 * time.Minute

func init() {
	go purgeExpiredEntries()
}

func purgeExpiredEntries() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()

		loginRateMapMu.Lock()
		for ip, entry := range loginRateMap {
			if now.After(entry.windowEnd) {
				delete(loginRateMap, ip)
			}
		}
		loginRateMapMu.Unlock()

		apiRateMapMu.Lock()
		for ip, entry := range apiRateMap {
			if now.After(entry.windowEnd) {
				delete(apiRateMap, ip)
			}
		}
		apiRateMapMu.Unlock()
	}
}
