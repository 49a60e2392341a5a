package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestAs(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/websites/w1/scrape", nil)
	if userID != "" {
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
	}
	return req
}

func testConfig(generalBurst, scrapeBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    generalBurst,
		ScrapeRate:      0.1,
		ScrapeBurst:     scrapeBurst,
		CleanupInterval: time.Minute,
	}
}

func TestNewRateLimiterConfig(t *testing.T) {
	cfg := NewRateLimiterConfig(60, 6)
	if cfg.GeneralRate != 1 || cfg.GeneralBurst != 60 {
		t.Errorf("general = %v/%d, want 1/60", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.ScrapeRate != 0.1 || cfg.ScrapeBurst != 6 {
		t.Errorf("scrape = %v/%d, want 0.1/6", cfg.ScrapeRate, cfg.ScrapeBurst)
	}

	def := NewRateLimiterConfig(0, -1)
	if def.GeneralBurst != 120 || def.ScrapeBurst != 5 {
		t.Errorf("defaults = %d/%d, want 120/5", def.GeneralBurst, def.ScrapeBurst)
	}
}

func TestGeneralMiddleware_AllowsWithinBurstThenRejects(t *testing.T) {
	rl := NewRateLimiter(testConfig(3, 1))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs("user-1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", w.Header().Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}

func TestScrapeMiddleware_RetryAfterReflectsRate(t *testing.T) {
	rl := NewRateLimiter(testConfig(100, 1))
	defer rl.Stop()
	handler := rl.ScrapeMiddleware()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("first scrape status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second scrape status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "10" {
		t.Errorf("Retry-After = %q, want 10", got)
	}
}

func TestRateLimiter_UsersAndKindsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(testConfig(1, 1))
	defer rl.Stop()
	general := rl.GeneralMiddleware()(okHandler())
	scrape := rl.ScrapeMiddleware()(okHandler())

	steps := []struct {
		name    string
		handler http.Handler
		user    string
		want    int
	}{
		{"user-1 general", general, "user-1", http.StatusOK},
		{"user-1 general exhausted", general, "user-1", http.StatusTooManyRequests},
		{"user-1 scrape separate bucket", scrape, "user-1", http.StatusOK},
		{"user-2 general own bucket", general, "user-2", http.StatusOK},
	}
	for _, st := range steps {
		w := httptest.NewRecorder()
		st.handler.ServeHTTP(w, requestAs(st.user))
		if w.Code != st.want {
			t.Errorf("%s: status = %d, want %d", st.name, w.Code, st.want)
		}
	}

	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
	if rl.ScrapeLimiterCount() != 1 {
		t.Errorf("ScrapeLimiterCount = %d, want 1", rl.ScrapeLimiterCount())
	}
}

func TestRateLimiter_RequiresUserInContext(t *testing.T) {
	rl := NewRateLimiter(testConfig(1, 1))
	defer rl.Stop()

	w := httptest.NewRecorder()
	rl.GeneralMiddleware()(okHandler()).ServeHTTP(w, requestAs(""))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	rl := NewRateLimiter(testConfig(5, 5))
	defer rl.Stop()

	handler := rl.ScrapeMiddleware()(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), requestAs("user-1"))
	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestAs("user-1"))

	rl.cleanup(time.Now())
	if rl.ScrapeLimiterCount() != 1 {
		t.Fatalf("recent entry evicted")
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.GeneralLimiterCount() != 0 || rl.ScrapeLimiterCount() != 0 {
		t.Errorf("counts = %d/%d, want 0/0", rl.GeneralLimiterCount(), rl.ScrapeLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(testConfig(1, 1))
	rl.Stop()
	rl.Stop()
}
