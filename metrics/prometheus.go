package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 文档存储指标
	docstoreRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profitcal_docstore_requests_total",
			Help: "Total number of document store requests",
		},
		[]string{"op", "status"},
	)

	docstoreRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "profitcal_docstore_request_duration_seconds",
			Help:    "Document store request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"op"},
	)

	// 文档指标
	documentUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "profitcal_document_users",
			Help: "Number of users in the active document",
		},
	)

	documentRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "profitcal_document_records",
			Help: "Number of date records in the active document",
		},
	)

	// 积分计算指标
	scoreCalculationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profitcal_score_calculations_total",
			Help: "Total number of simulation score calculations",
		},
		[]string{"status"},
	)

	// 触发下单指标
	triggerOrderTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profitcal_trigger_orders_total",
			Help: "Total number of trigger orders placed",
		},
		[]string{"symbol", "status"},
	)

	// HTTP 指标
	httpRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profitcal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "profitcal_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
		},
		[]string{"method", "path"},
	)

	// WebSocket 指标
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "profitcal_websocket_connections",
			Help: "Current number of WebSocket connections",
		},
	)

	// 系统指标
	systemCPUPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "profitcal_system_cpu_percent",
			Help: "Process CPU usage percentage",
		},
	)

	systemMemoryMB = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "profitcal_system_memory_mb",
			Help: "Process resident memory in MB",
		},
	)

	systemGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "profitcal_system_goroutines",
			Help: "Current number of goroutines",
		},
	)
)

// RecordDocstoreRequest 记录一次文档存储请求
func RecordDocstoreRequest(op, status string, duration time.Duration) {
	docstoreRequestTotal.WithLabelValues(op, status).Inc()
	docstoreRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// SetDocumentStats 更新文档规模指标
func SetDocumentStats(users, records int) {
	documentUsers.Set(float64(users))
	documentRecords.Set(float64(records))
}

// RecordScoreCalculation 记录一次模拟积分计算
func RecordScoreCalculation(status string) {
	scoreCalculationTotal.WithLabelValues(status).Inc()
}

// RecordTriggerOrder 记录一次触发下单
func RecordTriggerOrder(symbol, status string) {
	triggerOrderTotal.WithLabelValues(symbol, status).Inc()
}

// RecordHTTPRequest 记录一次 HTTP 请求
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// WebSocketConnected WebSocket 连接数 +1
func WebSocketConnected() {
	websocketConnections.Inc()
}

// WebSocketDisconnected WebSocket 连接数 -1
func WebSocketDisconnected() {
	websocketConnections.Dec()
}

// SetSystemStats 更新系统资源指标
func SetSystemStats(cpuPercent, memoryMB float64, goroutines int) {
	systemCPUPercent.Set(cpuPercent)
	systemMemoryMB.Set(memoryMB)
	systemGoroutines.Set(float64(goroutines))
}
