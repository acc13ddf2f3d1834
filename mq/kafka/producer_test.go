package kafka

import (
	"testing"
	"time"

	"github.com/aisgo/ais-modelcode/mq"

	"github.com/IBM/sarama"
)

func TestBuildSaramaConfig(t *testing.T) {
	cfg := mq.DefaultKafkaConfig()
	cfg.Producer.Compression = "zstd"
	cfg.Producer.Idempotent = true
	cfg.Producer.RequiredAcks = "leader"
	cfg.SASL = mq.KafkaSASLConfig{Enable: true, Mechanism: "SCRAM-SHA-512", Username: "u", Password: "p"}

	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if sc.Producer.Compression != sarama.CompressionZSTD {
		t.Fatalf("compression = %v", sc.Producer.Compression)
	}
	if sc.Producer.RequiredAcks != sarama.WaitForAll || sc.Net.MaxOpenRequests != 1 {
		t.Fatalf("idempotent producer must wait for all with a single in-flight request")
	}
	if sc.Producer.Timeout != 10*time.Second {
		t.Fatalf("timeout = %v", sc.Producer.Timeout)
	}
	if sc.Net.SASL.Mechanism != sarama.SASLTypeSCRAMSHA512 || sc.Net.SASL.SCRAMClientGeneratorFunc == nil {
		t.Fatalf("unexpected SASL config: %+v", sc.Net.SASL)
	}

	cfg.Version = "not-a-version"
	if _, err := buildSaramaConfig(cfg); err == nil {
		t.Fatalf("expected invalid version error")
	}
}

func TestBuildTLSConfigMissingCA(t *testing.T) {
	_, err := buildTLSConfig(mq.KafkaTLSConfig{Enable: true, CAFile: "/nonexistent/ca.pem"})
	if err == nil {
		t.Fatalf("expected error for missing CA file")
	}
}

func TestToProducerMessage(t *testing.T) {
	msg := mq.NewMessage("modelcode-audit", []byte("x")).
		WithKey("code_usage:7").
		WithTag("restore").
		WithProperty("operator", "bob")

	pm := toProducerMessage(msg)
	if pm.Topic != "modelcode-audit" {
		t.Fatalf("topic = %s", pm.Topic)
	}
	key, _ := pm.Key.Encode()
	if string(key) != "code_usage:7" {
		t.Fatalf("key = %s", key)
	}

	headers := map[string]string{}
	for _, h := range pm.Headers {
		headers[string(h.Key)] = string(h.Value)
	}
	if headers[TagHeader] != "restore" || headers["operator"] != "bob" {
		t.Fatalf("headers = %v", headers)
	}

	if bare := toProducerMessage(mq.NewMessage("t", nil)); bare.Key != nil || bare.Headers != nil {
		t.Fatalf("bare message must not carry key or headers")
	}
}

func TestSCRAMClientBegin(t *testing.T) {
	c := &XDGSCRAMClient{HashGeneratorFcn: SHA512}
	if err := c.Begin("user", "pass", ""); err != nil {
		t.Fatalf("begin: %v", err)
	}
	first, err := c.Step("")
	if err != nil || first == "" {
		t.Fatalf("first step = %q, %v", first, err)
	}
	if c.Done() {
		t.Fatalf("conversation must not be done after the first message")
	}
}
