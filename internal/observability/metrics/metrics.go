// Package metrics registers the prometheus instruments for the workflow
// engine and the expiration notifier.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type WorkflowMetrics struct {
	handled        *prometheus.CounterVec
	commitFailures *prometheus.CounterVec
	denied         prometheus.Counter
}

type NotifierMetrics struct {
	scans        prometheus.Counter
	scansSkipped prometheus.Counter
	sent         *prometheus.CounterVec
	sendFailures *prometheus.CounterVec
}

var (
	mu       sync.Mutex
	workflow *WorkflowMetrics
	notifier *NotifierMetrics
)

// Workflow returns the process-wide workflow metrics, registering them on
// first use.
func Workflow() *WorkflowMetrics {
	mu.Lock()
	defer mu.Unlock()
	if workflow == nil {
		workflow = newWorkflowMetrics(prometheus.DefaultRegisterer)
	}
	return workflow
}

// Notifier returns the process-wide notifier metrics, registering them on
// first use.
func Notifier() *NotifierMetrics {
	mu.Lock()
	defer mu.Unlock()
	if notifier == nil {
		notifier = newNotifierMetrics(prometheus.DefaultRegisterer)
	}
	return notifier
}

// ResetForTest drops the cached instruments so tests can swap the default
// registry.
func ResetForTest() {
	mu.Lock()
	defer mu.Unlock()
	workflow = nil
	notifier = nil
}

func newWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	m := &WorkflowMetrics{
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simroster_workflow_messages_total",
			Help: "Messages handled by the workflow engine, by session state.",
		}, []string{"state"}),
		commitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simroster_workflow_commit_failures_total",
			Help: "Terminal-state commits aborted by infrastructure errors.",
		}, []string{"flow"}),
		denied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simroster_workflow_denied_total",
			Help: "Privileged commands rejected for non-administrators.",
		}),
	}
	reg.MustRegister(m.handled, m.commitFailures, m.denied)
	return m
}

func newNotifierMetrics(reg prometheus.Registerer) *NotifierMetrics {
	m := &NotifierMetrics{
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simroster_notifier_scans_total",
			Help: "Daily expiration scans executed.",
		}),
		scansSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simroster_notifier_scans_skipped_total",
			Help: "Scans skipped because the wake-up missed the grace window.",
		}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simroster_notifier_messages_sent_total",
			Help: "Bucket messages delivered, by bucket.",
		}, []string{"bucket"}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simroster_notifier_send_failures_total",
			Help: "Bucket message deliveries that failed, by bucket.",
		}, []string{"bucket"}),
	}
	reg.MustRegister(m.scans, m.scansSkipped, m.sent, m.sendFailures)
	return m
}

func (m *WorkflowMetrics) IncHandled(state string)      { m.handled.WithLabelValues(state).Inc() }
func (m *WorkflowMetrics) IncCommitFailure(flow string) { m.commitFailures.WithLabelValues(flow).Inc() }
func (m *WorkflowMetrics) IncDenied()                   { m.denied.Inc() }

func (m *NotifierMetrics) IncScan()                 { m.scans.Inc() }
func (m *NotifierMetrics) IncScanSkipped()          { m.scansSkipped.Inc() }
func (m *NotifierMetrics) IncSent(bucket string)    { m.sent.WithLabelValues(bucket).Inc() }
func (m *NotifierMetrics) IncFailure(bucket string) { m.sendFailures.WithLabelValues(bucket).Inc() }
