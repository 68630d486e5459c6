package observability

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
)

const (
	healthStatusOK          = "ok"
	healthStatusUnavailable = "unavailable"
)

// ReadyCheck is a function that checks if a subsystem is ready.
// It returns nil if the check passes, or an error describing the failure.
type ReadyCheck func(ctx context.Context) error

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler returns an [http.Handler] for liveness checks at /healthz.
// It always returns HTTP 200 with {"status":"ok"}.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		writeHealthJSON(rw, healthBody{Status: healthStatusOK})
	})
}

// ReadyHandler returns an [http.Handler] for readiness checks at /readyz.
// Every named check runs; the response lists each check's outcome and is
// HTTP 503 with status "unavailable" when any of them fails.
func ReadyHandler(checks map[string]ReadyCheck) http.Handler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}

	sort.Strings(names)

	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		rw.Header().Set("Content-Type", "application/json")

		body := healthBody{Status: healthStatusOK}
		code := http.StatusOK

		for _, name := range names {
			if body.Checks == nil {
				body.Checks = make(map[string]string, len(names))
			}

			err := checks[name](hr.Context())
			if err != nil {
				body.Checks[name] = err.Error()
				body.Status = healthStatusUnavailable
				code = http.StatusServiceUnavailable

				continue
			}

			body.Checks[name] = healthStatusOK
		}

		rw.WriteHeader(code)
		writeHealthJSON(rw, body)
	})
}

func writeHealthJSON(w io.Writer, body healthBody) {
	data, err := json.Marshal(body)
	if err != nil {
		return
	}

	_, err = w.Write(data)
	if err != nil {
		return
	}
}
