// Package notify publishes sync events to an MQTT broker so that other
// devices or a dashboard can follow the field unit's progress.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/groundwatch/internal/client/syncer"
	"github.com/dmitrijs2005/groundwatch/internal/logging"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	TopicSyncComplete = "sync/complete"
	TopicSyncFailed   = "sync/failed"

	qosAtLeastOnce byte = 1
)

// Publisher is the part of mqtt.Client used here.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type CompleteEvent struct {
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
	At      string `json:"at"`
}

// FailedEvent is the dead-letter record of a request dropped at the retry
// ceiling.
type FailedEvent struct {
	ID         int64  `json:"id"`
	URL        string `json:"url"`
	Type       string `json:"type"`
	RetryCount int    `json:"retryCount"`
	Error      string `json:"error"`
}

type MQTTPublisher struct {
	client  Publisher
	prefix  string
	timeout time.Duration
	log     logging.Logger
	now     func() time.Time
	closeFn func()
}

func NewMQTTPublisher(client Publisher, prefix string, log logging.Logger) *MQTTPublisher {
	if log == nil {
		log = logging.Nop()
	}
	return &MQTTPublisher{
		client:  client,
		prefix:  prefix,
		timeout: 5 * time.Second,
		log:     log.With("module", "notify"),
		now:     time.Now,
	}
}

// Connect dials broker and returns a publisher bound to it.
func Connect(ctx context.Context, broker, prefix string, log logging.Logger) (*MQTTPublisher, error) {
	clientID := fmt.Sprintf("groundwatch-%s", uuid.NewString())
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts = opts.SetOrderMatters(false).SetAutoReconnect(true).SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to broker %s: %w", broker, err)
	}

	p := NewMQTTPublisher(client, prefix, log)
	p.closeFn = func() { client.Disconnect(250) }
	p.log.Info(ctx, "connected to MQTT broker", "broker", broker, "client", clientID)
	return p, nil
}

// Attach subscribes the publisher to m's events.
func (p *MQTTPublisher) Attach(m *syncer.Manager) {
	m.OnSyncComplete(p.SyncComplete)
	m.OnPermanentFailure(p.PermanentFailure)
}

func (p *MQTTPublisher) SyncComplete(success, failed int) {
	ev := CompleteEvent{Success: success, Failed: failed, At: p.now().UTC().Format(time.RFC3339Nano)}
	_ = p.publish(p.topic(TopicSyncComplete), ev)
}

func (p *MQTTPublisher) PermanentFailure(pf syncer.PermanentFailure) {
	ev := FailedEvent{}
	if pf.Request != nil {
		ev.ID = pf.Request.ID
		ev.URL = pf.Request.URL
		ev.Type = string(pf.Request.Type)
		ev.RetryCount = pf.Request.RetryCount
	}
	if pf.Err != nil {
		ev.Error = pf.Err.Error()
	}
	_ = p.publish(p.topic(TopicSyncFailed), ev)
}

func (p *MQTTPublisher) Close() {
	if p.closeFn != nil {
		p.closeFn()
	}
}

func (p *MQTTPublisher) topic(suffix string) string {
	if p.prefix == "" {
		return suffix
	}
	return p.prefix + "/" + suffix
}

func (p *MQTTPublisher) publish(topic string, v any) error {
	ctx := context.Background()

	data, err := json.Marshal(v)
	if err != nil {
		p.log.Error(ctx, "failed to encode event", "topic", topic, "error", err)
		return err
	}

	token := p.client.Publish(topic, qosAtLeastOnce, false, data)
	if !token.WaitTimeout(p.timeout) {
		err := errors.New("publish timed out")
		p.log.Warn(ctx, "publish error", "topic", topic, "error", err)
		return err
	}
	if err := token.Error(); err != nil {
		p.log.Warn(ctx, "publish error", "topic", topic, "error", err)
		return err
	}
	p.log.Debug(ctx, "event published", "topic", topic)
	return nil
}
