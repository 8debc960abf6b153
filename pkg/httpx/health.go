package httpx

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const healthTimeout = 2 * time.Second

// HealthChecker is satisfied by any dependency exposing Ping
// (database.Database, cache.RedisClient, events.EventBus).
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Check names one probed dependency.
type Check struct {
	Name    string
	Checker HealthChecker
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthHandler probes every check concurrently and answers 503 with status
// "degraded" if any of them fails.
func HealthHandler(checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, c := range checks {
			wg.Add(1)
			go func(c Check) {
				defer wg.Done()
				state := "ok"
				if err := c.Checker.Ping(ctx); err != nil {
					state = "unreachable"
				}
				mu.Lock()
				resp.Checks[c.Name] = state
				if state != "ok" {
					resp.Status = "degraded"
				}
				mu.Unlock()
			}(c)
		}
		wg.Wait()

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		JSON(w, status, resp)
	}
}
