package mq

import (
	"fmt"
	"time"
)

/* ========================================================================
 * MQ 配置
 * ======================================================================== */

// Config MQ 配置，Enabled 为 false 时不创建生产者
type Config struct {
	Enabled  bool            `yaml:"enabled" mapstructure:"enabled"`
	Type     Type            `yaml:"type" mapstructure:"type"`
	RocketMQ *RocketMQConfig `yaml:"rocketmq" mapstructure:"rocketmq"`
	Kafka    *KafkaConfig    `yaml:"kafka" mapstructure:"kafka"`
}

// DefaultConfig 默认配置（未启用）
func DefaultConfig() *Config {
	return &Config{
		Type:     TypeKafka,
		RocketMQ: DefaultRocketMQConfig(),
		Kafka:    DefaultKafkaConfig(),
	}
}

// Validate 校验启用的实现是否给出了连接地址
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	switch c.Type {
	case TypeKafka:
		if c.Kafka == nil || len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("mq.kafka.brokers is required")
		}
	case TypeRocketMQ:
		if c.RocketMQ == nil || len(c.RocketMQ.NameServers) == 0 {
			return fmt.Errorf("mq.rocketmq.name_servers is required")
		}
	default:
		return fmt.Errorf("unsupported mq type %q", c.Type)
	}
	return nil
}

// RocketMQConfig RocketMQ 配置
type RocketMQConfig struct {
	NameServers  []string `yaml:"name_servers" mapstructure:"name_servers"`
	Namespace    string   `yaml:"namespace" mapstructure:"namespace"`
	InstanceName string   `yaml:"instance_name" mapstructure:"instance_name"`
	AccessKey    string   `yaml:"access_key" mapstructure:"access_key"`
	SecretKey    string   `yaml:"secret_key" mapstructure:"secret_key"`

	Producer RocketMQProducerConfig `yaml:"producer" mapstructure:"producer"`
}

// RocketMQProducerConfig RocketMQ 生产者配置
type RocketMQProducerConfig struct {
	GroupName          string        `yaml:"group_name" mapstructure:"group_name"`
	SendMsgTimeout     time.Duration `yaml:"send_msg_timeout" mapstructure:"send_msg_timeout"`
	RetryTimesOnFailed int           `yaml:"retry_times_on_failed" mapstructure:"retry_times_on_failed"`
}

func DefaultRocketMQConfig() *RocketMQConfig {
	return &RocketMQConfig{
		NameServers:  []string{"127.0.0.1:9876"},
		InstanceName: "modelcode",
		Producer: RocketMQProducerConfig{
			GroupName:          "modelcode_audit_producer",
			SendMsgTimeout:     3 * time.Second,
			RetryTimesOnFailed: 2,
		},
	}
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers  []string            `yaml:"brokers" mapstructure:"brokers"`
	Version  string              `yaml:"version" mapstructure:"version"`
	SASL     KafkaSASLConfig     `yaml:"sasl" mapstructure:"sasl"`
	TLS      KafkaTLSConfig      `yaml:"tls" mapstructure:"tls"`
	Producer KafkaProducerConfig `yaml:"producer" mapstructure:"producer"`
}

// KafkaSASLConfig SASL 认证
type KafkaSASLConfig struct {
	Enable    bool   `yaml:"enable" mapstructure:"enable"`
	Mechanism string `yaml:"mechanism" mapstructure:"mechanism"` // PLAIN / SCRAM-SHA-256 / SCRAM-SHA-512
	Username  string `yaml:"username" mapstructure:"username"`
	Password  string `yaml:"password" mapstructure:"password"`
}

// KafkaTLSConfig TLS
type KafkaTLSConfig struct {
	Enable   bool   `yaml:"enable" mapstructure:"enable"`
	CertFile string `yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `yaml:"key_file" mapstructure:"key_file"`
	CAFile   string `yaml:"ca_file" mapstructure:"ca_file"`
	Insecure bool   `yaml:"insecure" mapstructure:"insecure"`
}

// KafkaProducerConfig Kafka 生产者配置
type KafkaProducerConfig struct {
	RequiredAcks    string        `yaml:"required_acks" mapstructure:"required_acks"` // none / leader / all
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxMessageBytes int           `yaml:"max_message_bytes" mapstructure:"max_message_bytes"`
	Compression     string        `yaml:"compression" mapstructure:"compression"` // none / gzip / snappy / lz4 / zstd
	Idempotent      bool          `yaml:"idempotent" mapstructure:"idempotent"`
	RetryMax        int           `yaml:"retry_max" mapstructure:"retry_max"`
}

func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Brokers: []string{"127.0.0.1:9092"},
		Version: "2.8.0",
		Producer: KafkaProducerConfig{
			RequiredAcks:    "all",
			Timeout:         10 * time.Second,
			MaxMessageBytes: 1024 * 1024,
			Compression:     "none",
			RetryMax:        3,
		},
	}
}
