package core

import (
	"context"
	"strings"
)

// metricNamespace prefixes every counter and histogram the service emits.
const metricNamespace = "broker_sessions"

func metricName(parts ...string) string {
	return metricNamespace + "." + strings.Join(parts, ".")
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ MetricsRecorder = NopMetricsRecorder{}
