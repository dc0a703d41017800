package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/absnotary/internal/flagx"
	"github.com/dmitrijs2005/absnotary/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "2s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files; pointer fields distinguish "absent" from zero so the
// overlay never clobbers defaults with empty values.
type JsonConfig struct {
	DatabaseDSN *string `json:"database_dsn"`
	LogLevel    *string `json:"log_level"`

	ChainName            *string `json:"chain_name"`
	ChainRPCEndpoint     *string `json:"chain_rpc_endpoint"`
	ChainContractAddress *string `json:"chain_contract_address"`
	ChainAccountAddress  *string `json:"chain_account_address"`
	ExplorerBaseURL      *string `json:"explorer_base_url"`

	RequiredConfirmations *int            `json:"required_confirmations"`
	PollInterval          *timex.Duration `json:"poll_interval"`
	MaxPollAttempts       *int            `json:"max_poll_attempts"`
	MaxConfirmationWait   *timex.Duration `json:"max_confirmation_wait"`

	MaxRetries        *int            `json:"max_retries"`
	RetryDelay        *timex.Duration `json:"retry_delay"`
	BackoffMultiplier *float64        `json:"backoff_multiplier"`

	CertStoragePath    *string `json:"cert_storage_path"`
	SigningKeyHex      *string `json:"signing_key_hex"`
	AllowUnsignedCerts *bool   `json:"allow_unsigned_certs"`
	CertificateVersion *string `json:"certificate_version"`

	KafkaBrokers []string `json:"kafka_brokers"`
	KafkaTopic   *string  `json:"kafka_topic"`
	KafkaGroup   *string  `json:"kafka_group"`

	RedisAddr *string         `json:"redis_addr"`
	LeaseTTL  *timex.Duration `json:"lease_ttl"`

	S3RootUser     *string `json:"s3_root_user"`
	S3RootPassword *string `json:"s3_root_password"`
	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`

	MetricsAddr *string `json:"metrics_addr"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path is taken from the -c or -config flags; when
// neither is set, no file is loaded. Only fields present in the file are
// copied over the defaults.
func parseJson(config *Config) error {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config %s: %w", jsonConfigFile, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", jsonConfigFile, err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, src *timex.Duration) {
		if src != nil {
			*dst = src.Duration
		}
	}

	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)

	setString(&config.ChainName, c.ChainName)
	setString(&config.ChainRPCEndpoint, c.ChainRPCEndpoint)
	setString(&config.ChainContractAddress, c.ChainContractAddress)
	setString(&config.ChainAccountAddress, c.ChainAccountAddress)
	setString(&config.ExplorerBaseURL, c.ExplorerBaseURL)

	setInt(&config.RequiredConfirmations, c.RequiredConfirmations)
	setDuration(&config.PollInterval, c.PollInterval)
	setInt(&config.MaxPollAttempts, c.MaxPollAttempts)
	setDuration(&config.MaxConfirmationWait, c.MaxConfirmationWait)

	setInt(&config.MaxRetries, c.MaxRetries)
	setDuration(&config.RetryDelay, c.RetryDelay)
	if c.BackoffMultiplier != nil {
		config.BackoffMultiplier = *c.BackoffMultiplier
	}

	setString(&config.CertStoragePath, c.CertStoragePath)
	setString(&config.SigningKeyHex, c.SigningKeyHex)
	if c.AllowUnsignedCerts != nil {
		config.AllowUnsignedCerts = *c.AllowUnsignedCerts
	}
	setString(&config.CertificateVersion, c.CertificateVersion)

	if len(c.KafkaBrokers) > 0 {
		config.KafkaBrokers = c.KafkaBrokers
	}
	setString(&config.KafkaTopic, c.KafkaTopic)
	setString(&config.KafkaGroup, c.KafkaGroup)

	setString(&config.RedisAddr, c.RedisAddr)
	setDuration(&config.LeaseTTL, c.LeaseTTL)

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	setString(&config.MetricsAddr, c.MetricsAddr)

	return nil
}
