// Package api exposes the operational HTTP surface every long-running
// rotor process carries: a health endpoint and prometheus metrics.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const ContentType = "application/json"

type healthRes struct {
	Status     string `json:"status"`
	Service    string `json:"service"`
	InstanceID string `json:"instance_id"`
	Time       string `json:"time"`
}

// MakeHandler builds the router served next to a process's main protocol
// endpoints.
func MakeHandler(svcName, instanceID string) http.Handler {
	mux := chi.NewRouter()

	mux.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		res := healthRes{
			Status:     "pass",
			Service:    svcName,
			InstanceID: instanceID,
			Time:       time.Now().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(res); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
