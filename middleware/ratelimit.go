package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type bucket struct {
	tokens     int
	lastRefill time.Time
}

var (
	rlMu        sync.Mutex
	buckets     = map[string]*bucket{}
	lastSweep   time.Time
	window      = 10 * time.Second
	capacity    = 5
	refillPerWd = capacity

	cgMu     sync.Mutex
	userSem  = map[string]*userSlots{}
	userConc = 2
)

type userSlots struct {
	sem   chan struct{}
	users int // holders plus waiters
}

func SetRateLimitConfig(win time.Duration, cap, conc int) {
	if win <= 0 {
		win = 10 * time.Second
	}
	if cap <= 0 {
		cap = 5
	}
	if conc <= 0 {
		conc = 1
	}
	rlMu.Lock()
	window = win
	capacity = cap
	refillPerWd = cap
	buckets = map[string]*bucket{}
	lastSweep = time.Time{}
	rlMu.Unlock()
	cgMu.Lock()
	userConc = conc
	cgMu.Unlock()
}

func clientIP(c *gin.Context) string {
	ip := strings.TrimSpace(c.ClientIP())
	if ip == "" {
		host, _, _ := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
		ip = host
	}
	return ip
}

func rateKey(c *gin.Context) string {
	return strconv.FormatUint(uint64(AdminID(c)), 10) + "@" + clientIP(c)
}

// RateLimit is a token bucket per admin and client IP.
func RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateKey(c)
		now := time.Now()

		rlMu.Lock()
		sweepBucketsNoLock(now)
		b := buckets[key]
		if b == nil {
			b = &bucket{tokens: capacity, lastRefill: now}
			buckets[key] = b
		}
		elapsed := now.Sub(b.lastRefill)
		if elapsed > 0 {
			add := int(float64(refillPerWd) * (float64(elapsed) / float64(window)))
			if add > 0 {
				b.tokens += add
				if b.tokens > capacity {
					b.tokens = capacity
				}
				b.lastRefill = now
			}
		}
		if b.tokens <= 0 {
			rlMu.Unlock()
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"msg": "too many requests"})
			return
		}
		b.tokens--
		rlMu.Unlock()

		c.Next()
	}
}

// sweepBucketsNoLock drops buckets idle for a whole window, which would have
// refilled to capacity anyway. Runs at most once per window; caller holds rlMu.
func sweepBucketsNoLock(now time.Time) {
	if now.Sub(lastSweep) < window {
		return
	}
	lastSweep = now
	for k, b := range buckets {
		if now.Sub(b.lastRefill) >= window {
			delete(buckets, k)
		}
	}
}

// AcquireUserSlot blocks until one of the per-user generation slots is free
// or ctx is done. The returned release must be called exactly once.
func AcquireUserSlot(ctx context.Context, uid string) (release func(), err error) {
	cgMu.Lock()
	s := userSem[uid]
	if s == nil {
		s = &userSlots{sem: make(chan struct{}, userConc)}
		userSem[uid] = s
	}
	s.users++
	cgMu.Unlock()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		dropSlotUser(uid, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.sem
			dropSlotUser(uid, s)
		})
	}, nil
}

// dropSlotUser forgets idle users so the map does not grow forever.
func dropSlotUser(uid string, s *userSlots) {
	cgMu.Lock()
	s.users--
	if s.users == 0 && userSem[uid] == s {
		delete(userSem, uid)
	}
	cgMu.Unlock()
}
