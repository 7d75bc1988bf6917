// Package metrics 定义推荐引擎的 Prometheus 指标。
//
// 指标在包级别创建，调用方在 main 中调用一次 Register 暴露出去；
// 未注册时指标照常累加，只是不会被采集。
package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blogrec"

// 请求结果取值
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

var (
	RecommendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommend_requests_total",
			Help:      "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	RecommendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommend_duration_seconds",
			Help:      "Recommendation latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	RecallItems = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recall_items",
			Help:      "Number of candidates returned per recall source",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"source"},
	)

	RecallErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recall_errors_total",
			Help:      "Recall source failures by source and error code",
		},
		[]string{"source", "code"},
	)

	SnapshotBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_builds_total",
			Help:      "Snapshot rebuilds by result",
		},
		[]string{"result"}, // "ok" / "error"
	)

	SnapshotBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_build_duration_seconds",
			Help:      "Snapshot rebuild duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	SnapshotVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_version",
			Help:      "Version of the snapshot currently served",
		},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		RecommendRequestsTotal,
		RecommendDuration,
		RecallItems,
		RecallErrorsTotal,
		SnapshotBuildsTotal,
		SnapshotBuildDuration,
		SnapshotVersion,
	}
}

var registerMu sync.Mutex

// Register 把所有指标注册到 reg；reg 为 nil 时使用 prometheus.DefaultRegisterer。
// 重复注册同一个 Registerer 不报错。
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	registerMu.Lock()
	defer registerMu.Unlock()
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRecall 是 recall.Fanout.OnSourceDone 的实现。
func ObserveRecall(source string, items int, code string) {
	RecallItems.WithLabelValues(source).Observe(float64(items))
	if code != "" {
		RecallErrorsTotal.WithLabelValues(source, code).Inc()
	}
}
