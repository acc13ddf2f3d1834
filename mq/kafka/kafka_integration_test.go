//go:build integration

package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aisgo/ais-modelcode/mq"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
)

func TestKafkaProducerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skip integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := kafka.Run(ctx, "confluentinc/cp-kafka:7.5.0", kafka.WithClusterID("modelcode-test"))
	if err != nil {
		t.Fatalf("start kafka container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	brokers, err := container.Brokers(ctx)
	if err != nil {
		t.Fatalf("brokers: %v", err)
	}

	kafkaCfg := mq.DefaultKafkaConfig()
	kafkaCfg.Brokers = brokers

	sc, err := buildSaramaConfig(kafkaCfg)
	if err != nil {
		t.Fatalf("sarama config: %v", err)
	}
	admin, err := sarama.NewClusterAdmin(brokers, sc)
	if err != nil {
		t.Fatalf("new cluster admin: %v", err)
	}
	defer admin.Close()

	topic := "audit-" + uuid.NewString()
	err = admin.CreateTopic(topic, &sarama.TopicDetail{NumPartitions: 1, ReplicationFactor: 1}, false)
	if err != nil && !errors.Is(err, sarama.ErrTopicAlreadyExists) {
		t.Fatalf("create topic: %v", err)
	}

	producer, err := NewProducer(&mq.Config{Enabled: true, Type: mq.TypeKafka, Kafka: kafkaCfg}, zap.NewNop())
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	t.Cleanup(func() { _ = producer.Close() })

	msg := mq.NewMessage(topic, []byte(`{"action":"allocate"}`)).WithKey("code_usage:1").WithTag("allocate")
	res, err := producer.SendSync(ctx, msg)
	if err != nil {
		t.Fatalf("send sync: %v", err)
	}

	consumer, err := sarama.NewConsumer(brokers, sarama.NewConfig())
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	defer consumer.Close()
	pc, err := consumer.ConsumePartition(topic, res.Partition, res.Offset)
	if err != nil {
		t.Fatalf("consume partition: %v", err)
	}
	defer pc.Close()

	select {
	case got := <-pc.Messages():
		if string(got.Key) != "code_usage:1" || string(got.Value) != `{"action":"allocate"}` {
			t.Fatalf("unexpected message: key=%s value=%s", got.Key, got.Value)
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("timeout waiting for message")
	}
}
