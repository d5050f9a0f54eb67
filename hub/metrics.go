package hub

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	onlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_online_users",
		Help: "Number of users currently in the room.",
	})

	messagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Messages routed, by type.",
	}, []string{"type"})

	fanoutSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_broadcast_fanout_seconds",
		Help:    "Time spent queueing one broadcast to all peers.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 10, 6),
	})
)

func init() {
	prometheus.MustRegister(onlineUsers, messagesTotal, fanoutSeconds)
}

// ServeMetrics 在 addr 上暴露 /metrics
func ServeMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Println("metrics:", err)
	}
}
