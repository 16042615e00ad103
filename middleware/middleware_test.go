package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"foundermatch/config"
	"foundermatch/models"
	"foundermatch/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := models.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func setupTestRedis(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	storage := NewRedisStorage(config.RedisConfig{Enabled: true, Address: s.Addr()})
	t.Cleanup(func() { storage.Close() })
	return storage, s
}

func TestProtected(t *testing.T) {
	db := setupTestDB(t)
	issuer := utils.NewTokenIssuer("test-secret", time.Minute, time.Hour)

	active := models.User{Email: "ann@example.com", Name: "ann", IsActive: true}
	db.Create(&active)
	disabled := models.User{Email: "bea@example.com", Name: "bea", IsActive: true}
	db.Create(&disabled)
	db.Model(&disabled).Update("is_active", false)

	app := fiber.New()
	app.Get("/me", Protected(db, issuer), func(c *fiber.Ctx) error {
		if CurrentUser(c) == nil {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"id": CurrentUserID(c)})
	})

	activeToken, _, _ := issuer.GenerateTokens(active.ID)
	disabledToken, _, _ := issuer.GenerateTokens(disabled.ID)
	_, refreshToken, _ := issuer.GenerateTokens(active.ID)
	unknownToken, _, _ := issuer.GenerateTokens(999)

	tests := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{"bearer header", "Bearer " + activeToken, "", http.StatusOK},
		{"cookie", "", activeToken, http.StatusOK},
		{"missing token", "", "", http.StatusUnauthorized},
		{"malformed header", "Token " + activeToken, "", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refreshToken, "", http.StatusUnauthorized},
		{"unknown user", "Bearer " + unknownToken, "", http.StatusUnauthorized},
		{"inactive user", "Bearer " + disabledToken, "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "access_token", Value: tt.cookie})
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("Failed to execute request: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestRedisStorage(t *testing.T) {
	storage, s := setupTestRedis(t)

	val, err := storage.Get("missing")
	if err != nil || val != nil {
		t.Fatalf("expected nil, nil for a missing key, got %q, %v", val, err)
	}

	if err := storage.Set("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, err = storage.Get("k")
	if err != nil || string(val) != "v" {
		t.Fatalf("expected v, got %q (%v)", val, err)
	}

	s.FastForward(2 * time.Minute)
	if val, _ := storage.Get("k"); val != nil {
		t.Errorf("expected key to expire, got %q", val)
	}

	storage.Set("a", []byte("1"), 0)
	if err := storage.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	storage.Set("b", []byte("1"), 0)
	if err := storage.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if val, _ := storage.Get("b"); val != nil {
		t.Errorf("expected reset to clear keys, got %q", val)
	}
}

func TestRateLimiterWithRedis(t *testing.T) {
	storage, _ := setupTestRedis(t)

	app := fiber.New()
	app.Post("/limited/:id", RateLimiter(2, time.Minute, storage), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/limited/1", nil))
		if err != nil {
			t.Fatalf("Failed to execute request: %v", err)
		}
		statuses = append(statuses, resp.StatusCode)
	}
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK || statuses[2] != http.StatusTooManyRequests {
		t.Errorf("expected 200, 200, 429, got %v", statuses)
	}
}

func TestNewRateLimitStorage(t *testing.T) {
	ctx := context.Background()

	storage, err := NewRateLimitStorage(ctx, config.RedisConfig{Enabled: false})
	if err != nil || storage != nil {
		t.Errorf("expected nil storage when Redis is disabled, got %T (%v)", storage, err)
	}

	s := miniredis.RunT(t)
	storage, err = NewRateLimitStorage(ctx, config.RedisConfig{Enabled: true, Address: s.Addr()})
	if err != nil {
		t.Fatalf("expected live Redis to connect, got %v", err)
	}
	storage.Close()

	s.Close()
	if _, err := NewRateLimitStorage(ctx, config.RedisConfig{Enabled: true, Address: s.Addr()}); err == nil {
		t.Error("expected unreachable Redis to fail at startup")
	}
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS([]string{"https://app.example.com"}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204 preflight, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("unexpected allow origin %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("expected credentials allowed for explicit origin, got %q", got)
	}
	if got := resp.Header.Get("Access-Control-Max-Age"); got != "3600" {
		t.Errorf("expected max age 3600, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, _ = app.Test(req)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow origin for unknown origin, got %q", got)
	}
}

func TestCORSWithoutOriginsAllowsAnyWithoutCredentials(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(nil))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("expected no credentials with wildcard, got %q", got)
	}
}
