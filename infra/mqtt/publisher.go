package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/kilianp07/pvopt/core/dto"
	"github.com/kilianp07/pvopt/core/model"
	"github.com/kilianp07/pvopt/core/monitoring"
)

// Dispatch publishes the result under key, retrying with exponential backoff.
func (p *PahoClient) Dispatch(ctx context.Context, key string, res *model.Result) error {
	if res == nil {
		return fmt.Errorf("dispatch %s: nil result", key)
	}
	payload, err := json.Marshal(dto.ResultMessage{Key: key, Result: dto.FromResult(res)})
	if err != nil {
		return fmt.Errorf("encode result %s: %w", key, err)
	}

	topic := p.cfg.ResultTopic
	qos := p.cfg.qos("result")
	var publishErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("sent result %s (task %d, %s) to %s", key, res.ID, res.Status, topic)
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == p.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			publishErr = fmt.Errorf("%w (last error: %v)", ctx.Err(), publishErr)
			attempt = p.cfg.MaxRetries
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	monitoring.CaptureException(publishErr, map[string]string{
		"key":     key,
		"task_id": strconv.FormatInt(res.ID, 10),
		"module":  "mqtt",
	})
	return fmt.Errorf("publish result %s: %w", key, publishErr)
}
