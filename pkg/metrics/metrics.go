// Package metrics 提供 Prometheus helper，包含 HTTP 与业务指标模板
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/ecommerce/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 业务指标
	OrdersCreatedTotal     prometheus.Counter
	OrdersCancelledTotal   prometheus.Counter
	CheckoutFailuresTotal  prometheus.Counter
	PaymentIntentsTotal    prometheus.Counter
	RefundsTotal           prometheus.Counter
	WebhookEventsTotal     *prometheus.CounterVec
	CheckoutAmount         prometheus.Histogram
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "commerce",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "commerce",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		OrdersCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "commerce",
			Subsystem: serviceName,
			Name:      "orders_created_total",
			Help:      "Total orders created via checkout",
		}),
		OrdersCancelledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "commerce",
			Subsystem: serviceName,
			Name:      "orders_cancelled_total",
			Help:      "Total orders cancelled",
		}),
		CheckoutFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "commerce",
			Subsystem: serviceName,
			Name:      "checkout_failures_total",
			Help:      "Total failed checkout attempts",
		}),
		PaymentIntentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "commerce",
			Subsystem: serviceName,
			Name:      "payment_intents_total",
			Help:      "Total payment intents created",
		}),
		RefundsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "commerce",
			Subsystem: serviceName,
			Name:      "refunds_total",
			Help:      "Total refunds issued",
		}),
		WebhookEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "commerce",
			Subsystem: serviceName,
			Name:      "webhook_events_total",
			Help:      "Total webhook events received, by event type",
		}, []string{"type"}),
		CheckoutAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "commerce",
			Subsystem: serviceName,
			Name:      "checkout_amount",
			Help:      "Order total amount distribution",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OrdersCreatedTotal,
		m.OrdersCancelledTotal,
		m.CheckoutFailuresTotal,
		m.PaymentIntentsTotal,
		m.RefundsTotal,
		m.WebhookEventsTotal,
		m.CheckoutAmount,
	}

	for _, collector := range collectors {
		if err := prometheus.DefaultRegisterer.Register(collector); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}

	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error(context.Background(), "Failed to start Prometheus HTTP server", "error", err)
		}
	}()

	return nil
}
