package api

import "net/http"

// health is a liveness probe for Docker/Kubernetes. Returns {"status":"ok"}.
func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}
