package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"bookshop/internal/infrastructure/database"
)

type Config struct {
	HTTPPort string

	DB database.DBConfig

	KafkaURL              string
	KafkaBookUpdatedTopic string
	KafkaOrderPaidTopic   string
	KafkaConsumerGroup    string

	VNPayTmnCode    string
	VNPayHashSecret string
	VNPayGatewayURL string
	VNPayReturnURL  string
	FrontendURL     string

	FXAPIURL    string
	FXAccessKey string
	FXTimeout   time.Duration

	OutboxPollInterval time.Duration
	OutboxPollTimeout  time.Duration

	RecalcBatchSize int
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPPort = getEnvOrDefault("HTTP_PORT", "8080")

	cfg.DB.Host = getEnvOrDefault("BOOKSHOP_DB_HOST", "localhost")
	cfg.DB.Port = getEnvOrDefault("BOOKSHOP_DB_PORT", "5432")
	cfg.DB.User = getEnvOrDefault("BOOKSHOP_DB_USER", "postgres")
	cfg.DB.Password = getEnvOrDefault("BOOKSHOP_DB_PASSWORD", "postgres")
	cfg.DB.DBName = getEnvOrDefault("BOOKSHOP_DB_NAME", "bookshop_db")
	cfg.DB.SSLMode = getEnvOrDefault("BOOKSHOP_DB_SSLMODE", "disable")

	cfg.KafkaURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaBookUpdatedTopic = getEnvOrDefault("KAFKA_BOOK_UPDATED_TOPIC", "catalog.book_updated")
	cfg.KafkaOrderPaidTopic = getEnvOrDefault("KAFKA_ORDER_PAID_TOPIC", "orders.order_paid")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "bookshop-checkout-group")

	cfg.VNPayTmnCode = getEnvOrDefault("VNPAY_TMN_CODE", "")
	cfg.VNPayHashSecret = getEnvOrDefault("VNPAY_HASH_SECRET", "")
	cfg.VNPayGatewayURL = getEnvOrDefault("VNPAY_GATEWAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html")
	cfg.VNPayReturnURL = getEnvOrDefault("VNPAY_RETURN_URL", "http://localhost:8080/payment/vnpay/return")
	cfg.FrontendURL = getEnvOrDefault("FRONTEND_PAYMENT_RESULT_URL", "http://localhost:3000/payment/result")
	if cfg.VNPayHashSecret == "" {
		return nil, fmt.Errorf("VNPAY_HASH_SECRET is required")
	}

	cfg.FXAPIURL = getEnvOrDefault("FX_API_URL", "https://api.exchangerate.host/convert")
	cfg.FXAccessKey = getEnvOrDefault("FX_ACCESS_KEY", "")

	fxTimeoutStr := getEnvOrDefault("FX_TIMEOUT", "10s")
	fxTimeout, err := time.ParseDuration(fxTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid FX_TIMEOUT: %w", err)
	}
	cfg.FXTimeout = fxTimeout

	outboxPollIntervalStr := getEnvOrDefault("OUTBOX_POLL_INTERVAL", "5s")
	interval, err := time.ParseDuration(outboxPollIntervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid OUTBOX_POLL_INTERVAL: %w", err)
	}
	cfg.OutboxPollInterval = interval

	outboxPollTimeoutStr := getEnvOrDefault("OUTBOX_POLL_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(outboxPollTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid OUTBOX_POLL_TIMEOUT: %w", err)
	}
	cfg.OutboxPollTimeout = timeout

	batchSizeStr := getEnvOrDefault("RECALC_BATCH_SIZE", "500")
	batchSize, err := strconv.Atoi(batchSizeStr)
	if err != nil || batchSize < 1 {
		return nil, fmt.Errorf("invalid RECALC_BATCH_SIZE: %q", batchSizeStr)
	}
	cfg.RecalcBatchSize = batchSize

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.DBName, c.DB.SSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return []string{c.KafkaURL}
}
