// Package dispatch provides an HTTP Cloud Function that delivers due
// reminders. Cloud Scheduler invokes it on a fixed interval.
package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/janisto/storytime-api/internal/app"
	"github.com/janisto/storytime-api/internal/config"
	applog "github.com/janisto/storytime-api/internal/platform/logging"
	"github.com/janisto/storytime-api/internal/platform/timeutil"
)

func init() {
	functions.HTTP("DispatchReminders", newHandler(openOnce(), timeutil.SystemClock{}))
}

// Response represents the function response.
type Response struct {
	Delivered int           `json:"delivered"`
	Timestamp timeutil.Time `json:"timestamp"`
}

type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// runFunc delivers one batch and reports how many reminders were sent.
type runFunc func(ctx context.Context) (int, error)

// openOnce opens the App on first use and reuses it across invocations.
// A failed open is retried on the next invocation.
func openOnce() runFunc {
	var (
		mu sync.Mutex
		a  *app.App
	)
	return func(ctx context.Context) (int, error) {
		mu.Lock()
		if a == nil {
			cfg, err := config.Load()
			if err != nil {
				mu.Unlock()
				return 0, err
			}
			opened, err := app.Open(context.Background(), cfg)
			if err != nil {
				mu.Unlock()
				return 0, err
			}
			a = opened
		}
		d := a.Dispatcher()
		mu.Unlock()
		return d.RunOnce(ctx)
	}
}

func newHandler(run runFunc, clock timeutil.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET, POST")
			writeJSON(w, http.StatusMethodNotAllowed, problem{
				Title:  http.StatusText(http.StatusMethodNotAllowed),
				Status: http.StatusMethodNotAllowed,
				Detail: "method " + r.Method + " not allowed",
			})
			return
		}

		n, err := run(r.Context())
		if err != nil {
			applog.LogError(r.Context(), "reminder dispatch failed", err)
			writeJSON(w, http.StatusServiceUnavailable, problem{
				Title:  http.StatusText(http.StatusServiceUnavailable),
				Status: http.StatusServiceUnavailable,
				Detail: "reminder dispatch failed",
			})
			return
		}

		writeJSON(w, http.StatusOK, Response{
			Delivered: n,
			Timestamp: timeutil.NewTime(clock.Now()),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
