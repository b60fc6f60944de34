package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/pvopt/core/dto"
	"github.com/kilianp07/pvopt/core/ingest"
	"github.com/kilianp07/pvopt/core/monitoring"
)

// Receive returns the next decoded task message.
func (p *PahoClient) Receive(ctx context.Context) (ingest.Delivery, error) {
	select {
	case <-ctx.Done():
		return ingest.Delivery{}, ctx.Err()
	case <-p.done:
		return ingest.Delivery{}, ingest.ErrSourceClosed
	case d := <-p.tasks:
		return d, nil
	}
}

// onTask decodes one task message. A payload that is not a task message at
// all cannot be answered and is acknowledged and dropped; a task that fails
// validation is delivered with Err set so the caller gets a not-found result.
func (p *PahoClient) onTask(_ paho.Client, msg paho.Message) {
	var m dto.TaskMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("drop undecodable task message on %s: %v", msg.Topic(), err)
		monitoring.CaptureException(fmt.Errorf("decode task message: %w", err), map[string]string{"module": "mqtt", "topic": msg.Topic()})
		msg.Ack()
		return
	}
	if m.Key == "" {
		m.Key = uuid.NewString()
	}
	d := ingest.Delivery{
		Key:      m.Key,
		TaskID:   m.Task.ID,
		Received: time.Now(),
		Ack: func() error {
			msg.Ack()
			return nil
		},
	}
	d.Task, d.Err = m.Task.ToModel()
	if d.Err != nil {
		d.Task = nil
	}

	select {
	case p.tasks <- d:
		p.logger.Debugw("task received", map[string]any{"key": d.Key, "task_id": d.TaskID})
	case <-p.done:
	}
}
