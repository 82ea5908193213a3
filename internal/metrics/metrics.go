package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "session",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	TransfersTracked = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "transfers_tracked",
		Help:      "Number of transfers currently held in the session registry.",
	})

	TransfersByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "transfers_by_status",
		Help:      "Number of tracked transfers per lifecycle status.",
	}, []string{"status"})

	AlertsAppliedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "alerts_applied_total",
		Help:      "Total engine alerts applied to the registry.",
	})

	AlertsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "alerts_dropped_total",
		Help:      "Total engine alerts dropped by reason.",
	}, []string{"reason"})

	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "commands_total",
		Help:      "Total transfer commands by command and result.",
	}, []string{"command", "result"})

	DownloadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "download_speed_bytes",
		Help:      "Current aggregate download speed in bytes per second.",
	})

	UploadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "upload_speed_bytes",
		Help:      "Current aggregate upload speed in bytes per second.",
	})

	PeersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "peers_connected",
		Help:      "Total number of peers connected across all transfers.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TransfersTracked,
		TransfersByStatus,
		AlertsAppliedTotal,
		AlertsDroppedTotal,
		CommandsTotal,
		DownloadSpeedBytes,
		UploadSpeedBytes,
		PeersConnected,
	)
}
