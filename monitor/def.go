package monitor

import (
	iface "YoloDetServer/interface"
	"YoloDetServer/logger"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Monitor owns the metrics registry of the server. It implements
// iface.Observer so detectors report into it directly.
type Monitor struct {
	Registry *prometheus.Registry

	memUsage      prometheus.Gauge
	cpuUsage      prometheus.Gauge
	requests      *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	failed        *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	detections    prometheus.Histogram
	engines       prometheus.Gauge

	proc *process.Process
}

func New() *Monitor {
	m := &Monitor{
		Registry: prometheus.NewRegistry(),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_Megabytes",
			Help: "Memory usage in Megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percent",
			Help: "CPU usage in percent",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total number of requests processed, by transport and method",
		}, []string{"transport", "method"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frames_dropped_total",
			Help: "Frames that produced no result, by reason",
		}, []string{"reason"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frames_failed_total",
			Help: "Frames that failed, by pipeline stage",
		}, []string{"stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stage_duration_milliseconds",
			Help:    "Per-frame duration of each pipeline stage",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 50, 100, 200, 500},
		}, []string{"stage"}),
		detections: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "detections_per_frame",
			Help:    "Objects reported per processed frame",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		engines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engines_loaded",
			Help: "Number of registered detectors",
		}),
	}
	m.Registry.MustRegister(m.memUsage, m.cpuUsage, m.requests, m.dropped, m.failed,
		m.stageDuration, m.detections, m.engines)
	return m
}

func (m *Monitor) Request(transport, method string) {
	m.requests.WithLabelValues(transport, method).Inc()
}

func (m *Monitor) SetEngines(n int) {
	m.engines.Set(float64(n))
}

func (m *Monitor) FrameDropped(reason string) {
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Monitor) FrameFailed(stage string) {
	m.failed.WithLabelValues(stage).Inc()
}

func (m *Monitor) FrameProcessed(res *iface.DetectionResult) {
	m.stageDuration.WithLabelValues("preprocess").Observe(res.PreprocessTimeMs)
	m.stageDuration.WithLabelValues("inference").Observe(res.InferenceTimeMs)
	m.stageDuration.WithLabelValues("postprocess").Observe(res.PostprocessTimeMs)
	m.detections.Observe(float64(len(res.Objects)))
}

func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// CheckProcessInfo 采样当前进程的内存（MB）和 CPU 占用
func (m *Monitor) CheckProcessInfo() error {
	if m.proc == nil {
		p, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return err
		}
		m.proc = p
	}
	memInfo, err := m.proc.MemoryInfo()
	if err != nil {
		return err
	}
	cpuPercent, err := m.proc.CPUPercent()
	if err != nil {
		return err
	}
	m.memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	m.cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	return nil
}

// StartMon serves /metrics on port and samples the process every 500ms until
// ctx is cancelled.
func (m *Monitor) StartMon(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("metrics server ListenAndServe error", zap.Error(err))
		}
	}()
	logger.Log().Info("metrics server listening", zap.Int("port", port))

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case <-ticker.C:
			if err := m.CheckProcessInfo(); err != nil {
				logger.Log().Debug("sample process info", zap.Error(err))
			}
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log().Error("metrics server Shutdown error", zap.Error(err))
	}
}
