package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"repartos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// windowLimiter counts requests per key in fixed windows.
type windowLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*windowEntry
}

type windowEntry struct {
	count     int
	windowEnd time.Time
}

func newWindowLimiter(limit int, window time.Duration) *windowLimiter {
	return &windowLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*windowEntry),
	}
}

// allow records one hit for key and reports whether it is within the limit,
// plus the end of the current window.
func (l *windowLimiter) allow(key string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.windowEnd) {
		e = &windowEntry{windowEnd: now.Add(l.window)}
		l.entries[key] = e
	}
	e.count++
	return e.count <= l.limit, e.windowEnd
}

// purge drops expired windows and returns how many were removed.
func (l *windowLimiter) purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for k, e := range l.entries {
		if now.After(e.windowEnd) {
			delete(l.entries, k)
			n++
		}
	}
	return n
}

// Limiters holds the login and general API limiters so one purge loop can
// serve both.
type Limiters struct {
	login *windowLimiter
	api   *windowLimiter
}

// NewLimiters builds a 20/min login limiter and an API limiter of apiPerMinute.
func NewLimiters(apiPerMinute int) *Limiters {
	if apiPerMinute <= 0 {
		apiPerMinute = 300
	}
	return &Limiters{
		login: newWindowLimiter(20, time.Minute),
		api:   newWindowLimiter(apiPerMinute, time.Minute),
	}
}

// Login limits login attempts per IP.
func (l *Limiters) Login() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ok, _ := l.login.allow(c.ClientIP()); !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiados intentos de login. Intente en 1 minuto."))
			return
		}
		c.Next()
	}
}

// API limits every request per IP.
func (l *Limiters) API() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, end := l.api.allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", end.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
			return
		}
		c.Next()
	}
}

// RunPurge removes expired entries every interval until ctx is done.
func (l *Limiters) RunPurge(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			login, api := l.login.purge(), l.api.purge()
			if login > 0 || api > 0 {
				log.Debug().
					Int("login_entries_purged", login).
					Int("api_entries_purged", api).
					Msg("rate limiter maps purged")
			}
		}
	}
}
