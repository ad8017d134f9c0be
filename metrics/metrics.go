// Package metrics provides Prometheus metrics for the market maker
package metrics

import (
	"net/http"
	"time"
)

// StartMetricsServer 启动Prometheus指标服务器，返回的 server 由调用方 Shutdown。
func StartMetricsServer(addr string, m *Monitor, onErr func(error)) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed && onErr != nil {
			onErr(err)
		}
	}()
	return srv
}
