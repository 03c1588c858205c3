package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
)

const otpRateLimitPrefix = "rl:otp:"

// OTPRateLimit caps OTP challenges per email (or client IP when the body has
// none) in a fixed window. Without Redis the window is kept in process memory.
// Redis errors fail open.
func OTPRateLimit(cache *redis.Client, maxPerWindow int, window time.Duration, logger *slog.Logger) fiber.Handler {
	if maxPerWindow <= 0 {
		maxPerWindow = 3
	}
	if window <= 0 {
		window = time.Minute
	}
	local := newWindowCounter(window)
	return func(c *fiber.Ctx) error {
		var req struct {
			Email string `json:"email"`
		}
		_ = c.BodyParser(&req)
		subject := strings.ToLower(strings.TrimSpace(req.Email))
		if subject == "" {
			subject = c.IP()
		}
		key := otpRateLimitPrefix + subject

		var cnt int64
		if cache == nil {
			cnt = local.incr(key, time.Now())
		} else {
			var err error
			cnt, err = cache.Incr(c.UserContext(), key).Result()
			if err != nil {
				logger.Warn("otp rate limit unavailable", slog.Any("error", err))
				return c.Next()
			}
			if cnt == 1 {
				cache.Expire(c.UserContext(), key, window)
			}
		}
		if cnt > int64(maxPerWindow) {
			return Reject(c, apiclient.NewAPIError(http.StatusTooManyRequests, apiclient.CodeOTPRateLimit, "too many verification codes requested, try again later"))
		}
		return c.Next()
	}
}

// windowCounter is the single-instance fixed window used without Redis.
type windowCounter struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]*windowEntry
}

type windowEntry struct {
	count int64
	reset time.Time
}

func newWindowCounter(window time.Duration) *windowCounter {
	return &windowCounter{window: window, entries: map[string]*windowEntry{}}
}

func (w *windowCounter) incr(key string, now time.Time) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	// drop expired windows so the map does not grow without bound
	if len(w.entries) > 10_000 {
		for k, e := range w.entries {
			if now.After(e.reset) {
				delete(w.entries, k)
			}
		}
	}
	e, ok := w.entries[key]
	if !ok || now.After(e.reset) {
		e = &windowEntry{reset: now.Add(w.window)}
		w.entries[key] = e
	}
	e.count++
	return e.count
}
