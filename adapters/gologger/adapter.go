// Package gologger centralizes glog logger resolution for the module's
// components and bridges the resolved loggers into the go-job queue runtime
// that backs the refresh scheduler.
package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Ensure returns the first non-nil candidate, falling back to a named glog
// logger so components always have somewhere to write.
func Ensure(component string, candidates ...glog.Logger) glog.Logger {
	for _, candidate := range candidates {
		if candidate != nil {
			return candidate
		}
	}
	_, logger := glog.Resolve(component, nil, nil)
	return glog.Ensure(logger)
}

// Resolve applies precedence provider > logger > nop for a component.
func Resolve(component string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(component, provider, logger)
}

// JobLogging maps a resolved glog pair onto the go-job contracts so queue
// workers log through the same stack as the rest of the module. Nil inputs
// stay nil so go-job applies its own defaults.
func JobLogging(provider glog.LoggerProvider, logger glog.Logger) (job.LoggerProvider, job.Logger) {
	var jobProvider job.LoggerProvider
	if provider != nil {
		jobProvider = job.GoLoggerProvider(provider)
	}
	var jobLogger job.Logger
	if logger != nil {
		jobLogger = job.GoLogger(logger)
	}
	return jobProvider, jobLogger
}

// ResolveForJob resolves a component's glog pair and returns the go-job
// equivalents alongside it.
func ResolveForJob(
	component string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(component, provider, logger)
	jobProvider, jobLogger := JobLogging(resolvedProvider, resolvedLogger)
	return resolvedProvider, resolvedLogger, jobProvider, jobLogger
}
