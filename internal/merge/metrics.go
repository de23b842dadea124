package merge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/automerge/internal/logfields"
)

const metricNamespace = "automerge_merge_action"

const outcomesMetricName = "outcomes_total"

const (
	operationLabel = "operation"
	statusLabel    = "status"
)

type operationLabelVal string

const (
	operationRun    operationLabelVal = "run"
	operationCancel operationLabelVal = "cancel"
)

type metricCollector struct {
	logger   *zap.Logger
	outcomes *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		outcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      outcomesMetricName,
				Help:      "count of merge action executions by result",
			},
			[]string{operationLabel, statusLabel},
		),
	}
}

func (m *metricCollector) OutcomeInc(op operationLabelVal, status Status) {
	cnt, err := m.outcomes.GetMetricWith(prometheus.Labels{
		operationLabel: string(op),
		statusLabel:    string(status),
	})
	if err != nil {
		m.logger.Warn(
			"could not record metric",
			zap.String("metric", outcomesMetricName),
			logfields.Event("recording_metric_failed"),
			zap.Error(err),
		)
		return
	}

	cnt.Inc()
}
