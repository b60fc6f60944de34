package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pvopt/config"
	coremon "github.com/kilianp07/pvopt/core/monitoring"
)

type captureTransport struct {
	events []*sentry.Event
}

func (t *captureTransport) Configure(sentry.ClientOptions)        {}
func (t *captureTransport) SendEvent(e *sentry.Event)             { t.events = append(t.events, e) }
func (t *captureTransport) Flush(time.Duration) bool              { return true }
func (t *captureTransport) FlushWithContext(context.Context) bool { return true }
func (t *captureTransport) Close()                                {}

func TestNewSentryMonitorWithoutDSN(t *testing.T) {
	mon, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, mon)
}

func TestSentryMonitorCapturesTags(t *testing.T) {
	tr := &captureTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Dsn: "https://public@example.com/1", Transport: tr})
	require.NoError(t, err)
	mon := &sentryMonitor{hub: sentry.NewHub(client, sentry.NewScope())}

	mon.CaptureException(nil, nil)
	mon.CaptureException(errors.New("solve failed"), map[string]string{"task_id": "3", "module": "optimizer"})
	mon.Flush(time.Second)

	require.Len(t, tr.events, 1)
	assert.Equal(t, "3", tr.events[0].Tags["task_id"])
	assert.Equal(t, "optimizer", tr.events[0].Tags["module"])
}
