package mergequeue

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/automerge/internal/logfields"
)

const metricNamespace = "automerge_merge_queue"

const (
	queueOperationsMetricName = "queue_operations_total"
	workerResultsMetricName   = "worker_results_total"
)

const (
	baseBranchLabel = "base_branch"
	repositoryLabel = "repository"
	operationLabel  = "operation"
	resultLabel     = "result"
)

type operationLabelVal string

const (
	operationLabelEnqueueVal operationLabelVal = "enqueue"
	operationLabelDequeueVal operationLabelVal = "dequeue"
)

type resultLabelVal string

const (
	resultUpdated   resultLabelVal = "updated"
	resultUptodate  resultLabelVal = "uptodate"
	resultDropped   resultLabelVal = "dropped"
	resultFailed    resultLabelVal = "failed"
	resultTransient resultLabelVal = "transient_failure"
)

type metricCollector struct {
	logger        *zap.Logger
	queueOps      *prometheus.CounterVec
	workerResults *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		queueOps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      queueOperationsMetricName,
				Help:      "count of queue operations",
			},
			[]string{repositoryLabel, baseBranchLabel, operationLabel},
		),
		workerResults: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      workerResultsMetricName,
				Help:      "count of processed queue entries by result",
			},
			[]string{repositoryLabel, baseBranchLabel, resultLabel},
		),
	}
}

func (m *metricCollector) logGetMetricFailed(metricName string, err error) {
	m.logger.Warn(
		"could not record metric",
		zap.String("metric", metricName),
		logfields.Event("recording_metric_failed"),
		zap.Error(err),
	)
}

func repositoryLabelVal(branchID *BranchID) string {
	return fmt.Sprintf("%s/%s", branchID.RepositoryOwner, branchID.Repository)
}

func (m *metricCollector) queueOpsInc(branchID *BranchID, operation operationLabelVal) {
	cnt, err := m.queueOps.GetMetricWith(prometheus.Labels{
		repositoryLabel: repositoryLabelVal(branchID),
		baseBranchLabel: branchID.Branch,
		operationLabel:  string(operation),
	})
	if err != nil {
		m.logGetMetricFailed(queueOperationsMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) EnqueueOpsInc(branchID *BranchID) {
	m.queueOpsInc(branchID, operationLabelEnqueueVal)
}

func (m *metricCollector) DequeueOpsInc(branchID *BranchID) {
	m.queueOpsInc(branchID, operationLabelDequeueVal)
}

func (m *metricCollector) WorkerResultInc(branchID *BranchID, result resultLabelVal) {
	cnt, err := m.workerResults.GetMetricWith(prometheus.Labels{
		repositoryLabel: repositoryLabelVal(branchID),
		baseBranchLabel: branchID.Branch,
		resultLabel:     string(result),
	})
	if err != nil {
		m.logGetMetricFailed(workerResultsMetricName, err)
		return
	}

	cnt.Inc()
}
