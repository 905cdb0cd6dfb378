package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects the measurements of one conversion run. It implements
// convert.Recorder and can be dumped to a node_exporter textfile.
type Recorder struct {
	registry *prometheus.Registry

	QueryDuration  *prometheus.HistogramVec
	Statements     *prometheus.CounterVec
	ProblemCount   prometheus.Gauge
	LastSuccess    prometheus.Gauge
	LastDuration   prometheus.Gauge
	LastRunSeconds prometheus.Gauge
}

// NewRecorder registers every metric on a private registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "utf8mb4_convert_query_duration_seconds",
				Help:    "information_schema query time per stage in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		Statements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "utf8mb4_convert_statements_total",
				Help: "ALTER statements generated, by stage and mode",
			},
			[]string{"stage", "mode"},
		),
		ProblemCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "utf8mb4_convert_problem_columns",
			Help: "Indexed columns whose prefix exceeds 191 characters",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "utf8mb4_convert_last_run_success",
			Help: "1 if the last run finished without error",
		}),
		LastDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "utf8mb4_convert_last_run_duration_seconds",
			Help: "Wall time of the last run in seconds",
		}),
		LastRunSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "utf8mb4_convert_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// QueryDone observes one metadata query.
func (r *Recorder) QueryDone(stage string, elapsed time.Duration) {
	r.QueryDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// StatementDone counts one printed statement; mode is "executed" or "printed".
func (r *Recorder) StatementDone(stage string, executed bool) {
	mode := "printed"
	if executed {
		mode = "executed"
	}
	r.Statements.WithLabelValues(stage, mode).Inc()
}

// ProblemColumns records the size of the problem-column report.
func (r *Recorder) ProblemColumns(n int) {
	r.ProblemCount.Set(float64(n))
}

// RunFinished records the outcome of the run.
func (r *Recorder) RunFinished(d time.Duration, err error) {
	if err == nil {
		r.LastSuccess.Set(1)
	} else {
		r.LastSuccess.Set(0)
	}
	r.LastDuration.Set(d.Seconds())
	r.LastRunSeconds.SetToCurrentTime()
}

// WriteTextfile writes every metric in the text exposition format. The file
// is written atomically, as the node_exporter textfile collector expects.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
