package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"reminder-agent/internal/logger"
)

const (
	EventShow    = "show"
	EventDismiss = "dismiss"
)

// DefaultPublishTimeout bounds one publish. Show and Dismiss run on the
// scheduler goroutine, so a down broker must not hold it for long.
const DefaultPublishTimeout = 5 * time.Second

// KafkaEvent is published for every show and dismiss so other devices
// or services can mirror live notifications.
type KafkaEvent struct {
	Type           string        `json:"type"`
	NotificationID string        `json:"notificationId"`
	Notification   *Notification `json:"notification,omitempty"`
	At             int64         `json:"at"`
}

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes notification events to one topic and consumes user
// interactions from another.
type Kafka struct {
	writer       messageWriter
	timeout      time.Duration
	brokers      []string
	actionsTopic string
	groupID      string
}

// NewKafka creates the producer for topic. Interactions are read from
// actionsTopic by Consume.
func NewKafka(brokers []string, topic, actionsTopic, groupID string) *Kafka {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: DefaultPublishTimeout,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
	}
	return &Kafka{
		writer:       w,
		timeout:      DefaultPublishTimeout,
		brokers:      brokers,
		actionsTopic: actionsTopic,
		groupID:      groupID,
	}
}

func (k *Kafka) Show(ctx context.Context, id string, n Notification) error {
	return k.publish(ctx, KafkaEvent{Type: EventShow, NotificationID: id, Notification: &n})
}

func (k *Kafka) Dismiss(ctx context.Context, id string) error {
	return k.publish(ctx, KafkaEvent{Type: EventDismiss, NotificationID: id})
}

func (k *Kafka) publish(ctx context.Context, ev KafkaEvent) error {
	ev.At = time.Now().UnixMilli()
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	timeout := k.timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Keyed by notification id so show/dismiss for one id stay ordered.
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.NotificationID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	return nil
}

// Consume reads interactions from the actions topic and passes each to
// handle. It blocks until ctx is done.
func (k *Kafka) Consume(ctx context.Context, handle func(Interaction)) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		Topic:    k.actionsTopic,
		GroupID:  k.groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	logger.Info(ctx, "Kafka interaction consumer started", "topic", k.actionsTopic)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error(ctx, "Kafka fetch failed", "error", err)
			continue
		}
		in, err := decodeInteraction(msg.Value)
		if err != nil {
			logger.Warn(ctx, "Dropping malformed interaction", "error", err, "payload", string(msg.Value))
		} else {
			handle(in)
		}
		// Commit anyway to avoid a poison pill blocking the partition
		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Error(ctx, "Kafka commit failed", "error", err)
		}
	}
}

func decodeInteraction(payload []byte) (Interaction, error) {
	var in Interaction
	if err := json.Unmarshal(payload, &in); err != nil {
		return Interaction{}, err
	}
	if in.NotificationID == "" {
		return Interaction{}, fmt.Errorf("missing notificationId")
	}
	if in.Button < BodyClick {
		return Interaction{}, fmt.Errorf("invalid button %d", in.Button)
	}
	return in, nil
}

// EnsureTopics creates the event and action topics (idempotent). Failure
// is logged and the notifier still runs.
func (k *Kafka) EnsureTopics(ctx context.Context, topics ...string) {
	if len(k.brokers) == 0 {
		return
	}
	conn, err := kafka.DialContext(ctx, "tcp", k.brokers[0])
	if err != nil {
		logger.Debug(ctx, "Kafka dial for topic creation failed", "error", err)
		return
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		logger.Debug(ctx, "Kafka controller lookup failed", "error", err)
		return
	}
	ctrlConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		logger.Debug(ctx, "Kafka controller dial failed", "error", err)
		return
	}
	defer ctrlConn.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, t := range topics {
		configs = append(configs, kafka.TopicConfig{Topic: t, NumPartitions: 1, ReplicationFactor: 1})
	}
	if err := ctrlConn.CreateTopics(configs...); err != nil {
		logger.Debug(ctx, "Kafka create topics failed (topics may already exist)", "error", err)
		return
	}
	logger.Info(ctx, "Kafka topics ensured", "topics", topics)
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
