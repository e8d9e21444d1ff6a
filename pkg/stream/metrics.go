package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метки причин потери кадров
const (
	DropReasonSizeMismatch = "size_mismatch"
	DropReasonSuperseded   = "superseded"
)

// Metrics Prometheus метрики приема видеопотока
type Metrics struct {
	DatagramsReceived   prometheus.Counter
	DatagramsIgnored    prometheus.Counter
	BytesReceived       prometheus.Counter
	FramesCompleted     prometheus.Counter
	FramesDropped       *prometheus.CounterVec
	ReceiveErrors       prometheus.Counter
	ControlSendFailures *prometheus.CounterVec
	StateTransitions    *prometheus.CounterVec
	FPS                 prometheus.Gauge
	ExpectedFrameBytes  prometheus.Gauge
	Recording           prometheus.Gauge
	WorkerSpawns        prometheus.Counter
}

// NewMetrics создает метрики и регистрирует их в reg.
// reg == nil создает незарегистрированные метрики (удобно в тестах).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	const namespace, subsystem = "camstream", "viewer"

	return &Metrics{
		DatagramsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "datagrams_received_total",
			Help:      "Fragment datagrams read from the sensor socket",
		}),
		DatagramsIgnored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "datagrams_ignored_total",
			Help:      "Datagrams not longer than the fragment header",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "received_bytes_total",
			Help:      "Bytes read from the sensor socket",
		}),
		FramesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_completed_total",
			Help:      "Frames reassembled with the expected size",
		}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_dropped_total",
			Help:      "Frames discarded during reassembly",
		}, []string{"reason"}),
		ReceiveErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "receive_errors_total",
			Help:      "Socket read errors other than timeouts",
		}),
		ControlSendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "control_send_failures_total",
			Help:      "Failed START/STOP control datagrams",
		}, []string{"command"}),
		StateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Session state machine transitions",
		}, []string{"from", "to"}),
		FPS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fps",
			Help:      "Smoothed received frame rate",
		}),
		ExpectedFrameBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "expected_frame_bytes",
			Help:      "Expected reassembled frame size for the selected resolution",
		}),
		Recording: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "recording",
			Help:      "1 while a recording sink is open",
		}),
		WorkerSpawns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "worker_spawns_total",
			Help:      "Receive worker goroutines started",
		}),
	}
}
