// Package monitoring forwards unexpected failures to an error tracker.
package monitoring

import "time"

// Monitor reports errors with tags and flushes what it buffered.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// NopMonitor drops every report.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init installs m as the process-wide monitor. A nil m is ignored.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// CaptureException reports err on the process-wide monitor.
func CaptureException(err error, tags map[string]string) {
	current.CaptureException(err, tags)
}
