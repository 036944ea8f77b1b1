// Package kafka prepares the job-queue topic and waits for the broker to become reachable
package kafka

import (
	"context"
	"errors"
	"log"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// EnsureTopics - создает топики очереди задач; уже существующие топики считаются успехом.
// Повторяет попытки с паузой delay до успеха или отмены ctx.
func EnsureTopics(ctx context.Context, brokerAddr string, delay time.Duration, partitions int, topics ...string) error {
	client := &kafkago.Client{
		Addr:    kafkago.TCP(brokerAddr),
		Timeout: 10 * time.Second,
	}

	req := topicsRequest(partitions, topics...)

	for {
		resp, err := client.CreateTopics(ctx, req)
		switch {
		case err != nil:
			log.Printf("Failed to run topics creation request: %v\nWait %v before next try...", err, delay)
		case topicsReady(resp.Errors):
			log.Println("All topics are ready!")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func topicsRequest(partitions int, topics ...string) *kafkago.CreateTopicsRequest {
	if partitions <= 0 {
		partitions = 1
	}

	req := &kafkago.CreateTopicsRequest{
		Topics: make([]kafkago.TopicConfig, 0, len(topics)),
	}
	for _, t := range topics {
		req.Topics = append(req.Topics, kafkago.TopicConfig{
			Topic:             t,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		})
	}
	return req
}

// topicsReady - true если каждый топик создан или уже существовал
func topicsReady(errs map[string]error) bool {
	ready := true
	for topic, err := range errs {
		switch {
		case err == nil, errors.Is(err, kafkago.TopicAlreadyExists):
		default:
			log.Printf("Topic %q creation error: %v", topic, err)
			ready = false
		}
	}
	return ready
}

// WaitKafkaReady - ждет пока брокер начнет принимать соединения
func WaitKafkaReady(ctx context.Context, brokerAddr string, delay time.Duration) error {
	dialer := &kafkago.Dialer{Timeout: 5 * time.Second}
	for {
		conn, err := dialer.DialContext(ctx, "tcp", brokerAddr)
		if err == nil {
			if errConn := conn.Close(); errConn != nil {
				log.Println("Failed to close connection after testing Kafka readiness:", errConn)
			}
			log.Println("Kafka is ready!")
			return nil
		}

		log.Printf("Kafka not ready, retrying in %v...", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
