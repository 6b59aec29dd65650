// Package metrics records deployment metrics and pushes them to a Prometheus Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "wormhole_deployer"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder holds the deployment metrics of one process in a private registry.
type Recorder struct {
	registry *prometheus.Registry

	deploymentsTotal *prometheus.CounterVec
	deployDuration   *prometheus.HistogramVec
	gasLimit         *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		deploymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_total",
				Help:      "Total number of contract deployments by contract and result",
			},
			[]string{"contract", "result"},
		),
		deployDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deploy_duration_seconds",
				Help:      "Time from submission to receipt for a contract deployment",
				Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
			},
			[]string{"contract"},
		),
		gasLimit: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "gas_limit",
				Help:      "Gas limit used for the contract-creation transaction",
			},
			[]string{"contract"},
		),
	}

	r.registry.MustRegister(r.deploymentsTotal, r.deployDuration, r.gasLimit)
	return r
}

// Registry exposes the underlying registry (used by tests and the pusher).
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveDeploy records the outcome of one deployment.
func (r *Recorder) ObserveDeploy(contract string, gas uint64, elapsed time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	r.deploymentsTotal.WithLabelValues(contract, result).Inc()
	r.deployDuration.WithLabelValues(contract).Observe(elapsed.Seconds())
	r.gasLimit.WithLabelValues(contract).Set(float64(gas))
}

// Push sends the collected metrics to a Pushgateway, grouped by run id.
func (r *Recorder) Push(ctx context.Context, url, job, runID string) error {
	pusher := push.New(url, job).
		Gatherer(r.registry).
		Grouping("run_id", runID)
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
