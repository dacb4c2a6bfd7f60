// Package events はスナップショット取得イベントを外部へ配送するシンクを提供します。
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"market_backend/internal/feature/snapshot/usecase"

	"github.com/segmentio/kafka-go"
)

// defaultWriteTimeout はイベント1件の書き込みに許す最大時間です。
const defaultWriteTimeout = 2 * time.Second

// MessageWriter はKafkaへメッセージを書き込みます。*kafka.Writer がこれを満たします。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink はイベントをJSONとしてKafkaトピックへ送ります。キーは銘柄コードです。
// 書き込みの失敗はログに残すだけで、取得処理には影響させません。
type KafkaSink struct {
	writer  MessageWriter
	timeout time.Duration
}

var _ usecase.EventSink = (*KafkaSink)(nil)

// NewKafkaSink は新しいKafkaSinkを生成します。
func NewKafkaSink(writer MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer, timeout: defaultWriteTimeout}
}

// NewKafkaWriter はイベント配送用のKafkaライターを生成します。
// 取得処理を待たせないよう非同期で書き込みます。
func NewKafkaWriter(brokers []string, topic, clientID string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Warn("failed to deliver snapshot events", "topic", topic, "count", len(messages), "error", err)
			}
		},
		Transport: &kafka.Transport{
			ClientID: clientID,
		},
	}
}

// Emit はイベントを1件書き込みます。
func (s *KafkaSink) Emit(ctx context.Context, ev usecase.Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal snapshot event", "type", ev.Type, "error", err)
		return
	}

	// 呼び出し元のキャンセルに巻き込まれないよう、独立した期限で書き込む
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(ev.Symbol),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "run_id", Value: []byte(ev.RunID)},
		},
		Time: ev.At,
	}
	if err := s.writer.WriteMessages(wctx, msg); err != nil {
		slog.Warn("failed to publish snapshot event", "type", ev.Type, "run_id", ev.RunID, "error", err)
	}
}
