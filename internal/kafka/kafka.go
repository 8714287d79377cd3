// Package kafka provides methods for initiating kafka-topics for the app and a kafka readiness-probing
package kafka

import (
	"context"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"
)

// InitKafkaTopics - creates topics in kafka, an already existing topic counts as created
func InitKafkaTopics(ctx context.Context, brokerAddr string, delay time.Duration, topics ...string) {
	client := &kafkago.Client{
		Addr:    kafkago.TCP(brokerAddr),
		Timeout: 10 * time.Second,
	}

	req := kafkago.CreateTopicsRequest{
		Topics: make([]kafkago.TopicConfig, 0, len(topics)),
	}

	for _, t := range topics {
		topic := kafkago.TopicConfig{
			Topic:             t,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
		req.Topics = append(req.Topics, topic)
	}

	for {
		resp, err := client.CreateTopics(ctx, &req)
		if err != nil {
			zlog.Logger.Warn().Err(err).Dur("delay", delay).Msg("Failed to run topics creation request")
			if !sleepCtx(ctx, delay) {
				zlog.Logger.Warn().Msg("InitKafkaTopics canceled or timed out")
				return
			}
			continue
		}

		created := 0
		for k, v := range resp.Errors {
			switch {
			case v == nil, errors.Is(v, kafkago.TopicAlreadyExists):
				created++
			default:
				zlog.Logger.Error().Err(v).Str("topic", k).Msg("Topic creation error")
			}
		}

		if len(resp.Errors) == created {
			zlog.Logger.Info().Strs("topics", topics).Msg("All topics created successfully!")
			return
		}
		if !sleepCtx(ctx, delay) {
			zlog.Logger.Warn().Msg("InitKafkaTopics canceled or timed out")
			return
		}
	}
}

// WaitKafkaReady - timeout given to kafka-service for getting fully functional
func WaitKafkaReady(ctx context.Context, brokerAddr string, delay time.Duration) bool {
	for {
		conn, err := kafkago.DialContext(ctx, "tcp", brokerAddr)
		if err == nil {
			if errConn := conn.Close(); errConn != nil {
				zlog.Logger.Warn().Err(errConn).Msg("Failed to close connection after testing Kafka readyness")
			}
			zlog.Logger.Info().Msg("Kafka is ready!")
			return true
		}
		zlog.Logger.Info().Dur("delay", delay).Msg("Kafka not ready, retrying...")
		if !sleepCtx(ctx, delay) {
			return false
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
