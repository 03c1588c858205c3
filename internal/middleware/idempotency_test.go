package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/eas-pay/eas_wallet/internal/logging"
)

func setupTestApp(t *testing.T, status int) (*fiber.App, *int32) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})

	var calls int32
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/prepare-payment-intent", func(c *fiber.Ctx) error {
		n := atomic.AddInt32(&calls, 1)
		return c.Status(status).JSON(fiber.Map{"id": "intent", "call": n})
	})

	return app, &calls
}

func post(t *testing.T, app *fiber.App, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/prepare-payment-intent", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyHeaderIsOptional(t *testing.T) {
	app, calls := setupTestApp(t, fiber.StatusOK)

	for i := 0; i < 2; i++ {
		if status, _ := post(t, app, ""); status != fiber.StatusOK {
			t.Fatalf("expected 200 got %d", status)
		}
	}
	if *calls != 2 {
		t.Fatalf("requests without a key must not be deduplicated, handler ran %d times", *calls)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls := setupTestApp(t, fiber.StatusOK)

	status, first := post(t, app, "abc123")
	if status != fiber.StatusOK {
		t.Fatalf("expected status %d got %d", fiber.StatusOK, status)
	}

	status, second := post(t, app, "abc123")
	if status != fiber.StatusOK {
		t.Fatalf("expected cached status %d got %d", fiber.StatusOK, status)
	}
	if first != second {
		t.Fatalf("expected cached payload %s got %s", first, second)
	}
	if *calls != 1 {
		t.Fatalf("handler should run once, ran %d times", *calls)
	}
}

func TestIdempotencyReleasesKeyOnFailure(t *testing.T) {
	app, calls := setupTestApp(t, fiber.StatusBadGateway)

	post(t, app, "k1")
	post(t, app, "k1")
	if *calls != 2 {
		t.Fatalf("failed responses must not be replayed, handler ran %d times", *calls)
	}
}
