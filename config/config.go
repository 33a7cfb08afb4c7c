package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the settings of the chaincode process and the oracle simulator.
type Config struct {
	Log    LogConfig
	Server ServerConfig
	Oracle OracleConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	// Spec is a flogging spec such as "info" or "flightsurety.contract=debug:warning".
	Spec string
}

// ServerConfig configures chaincode-as-a-service. With an empty Address the chaincode
// is launched by the peer instead.
type ServerConfig struct {
	Address     string
	ChaincodeID string
	TLS         TLSConfig
}

// TLSConfig holds the PEM files served by a chaincode-as-a-service endpoint.
type TLSConfig struct {
	Enabled      bool
	KeyFile      string
	CertFile     string
	ClientCAFile string
}

// OracleConfig drives the off-chain oracle simulator. The chaincode process ignores it;
// the simulator checks it with Validate.
type OracleConfig struct {
	Count          int
	MaxAttempts    int
	RetryBackoff   time.Duration
	Seed           int64
	MetricsAddress string
	Gateway        GatewayConfig
}

// GatewayConfig locates the Fabric Gateway peer the simulator submits through.
// IdentityDir holds one MSP directory per oracle, named after the oracle
// (<IdentityDir>/oracle-00/signcerts, <IdentityDir>/oracle-00/keystore).
type GatewayConfig struct {
	Endpoint           string
	TLSCertFile        string
	ServerNameOverride string
	MSPID              string
	Channel            string
	Chaincode          string
	IdentityDir        string
}

// AsService reports whether the chaincode should run its own gRPC server.
func (s ServerConfig) AsService() bool {
	return s.Address != ""
}

// Load loads configuration from config file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("log.spec", "info")
	v.SetDefault("server.address", "")
	v.SetDefault("server.chaincode_id", "")
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.client_ca_file", "")
	v.SetDefault("oracle.count", 20)
	v.SetDefault("oracle.max_attempts", 3)
	v.SetDefault("oracle.retry_backoff", "500ms")
	v.SetDefault("oracle.seed", 1)
	v.SetDefault("oracle.metrics_address", ":9102")
	v.SetDefault("oracle.gateway.endpoint", "localhost:7051")
	v.SetDefault("oracle.gateway.tls_cert_file", "")
	v.SetDefault("oracle.gateway.server_name_override", "")
	v.SetDefault("oracle.gateway.msp_id", "Org1MSP")
	v.SetDefault("oracle.gateway.channel", "mychannel")
	v.SetDefault("oracle.gateway.chaincode", "flightsurety")
	v.SetDefault("oracle.gateway.identity_dir", "")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/flightsurety")
	v.AddConfigPath(".")

	if configPath := os.Getenv("FLIGHTSURETY_CONFIG_PATH"); configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults and environment only.
	}

	// CHAINCODE_SERVER_ADDRESS and CHAINCODE_ID are the names Fabric's external
	// builders export, so they are honored as well.
	v.SetEnvPrefix("FLIGHTSURETY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.address", "FLIGHTSURETY_SERVER_ADDRESS", "CHAINCODE_SERVER_ADDRESS")
	_ = v.BindEnv("server.chaincode_id", "FLIGHTSURETY_SERVER_CHAINCODE_ID", "CHAINCODE_ID")

	cfg := &Config{
		Log: LogConfig{
			Spec: v.GetString("log.spec"),
		},
		Server: ServerConfig{
			Address:     v.GetString("server.address"),
			ChaincodeID: v.GetString("server.chaincode_id"),
			TLS: TLSConfig{
				Enabled:      v.GetBool("server.tls.enabled"),
				KeyFile:      v.GetString("server.tls.key_file"),
				CertFile:     v.GetString("server.tls.cert_file"),
				ClientCAFile: v.GetString("server.tls.client_ca_file"),
			},
		},
		Oracle: OracleConfig{
			Count:          v.GetInt("oracle.count"),
			MaxAttempts:    v.GetInt("oracle.max_attempts"),
			RetryBackoff:   v.GetDuration("oracle.retry_backoff"),
			Seed:           v.GetInt64("oracle.seed"),
			MetricsAddress: v.GetString("oracle.metrics_address"),
			Gateway: GatewayConfig{
				Endpoint:           v.GetString("oracle.gateway.endpoint"),
				TLSCertFile:        v.GetString("oracle.gateway.tls_cert_file"),
				ServerNameOverride: v.GetString("oracle.gateway.server_name_override"),
				MSPID:              v.GetString("oracle.gateway.msp_id"),
				Channel:            v.GetString("oracle.gateway.channel"),
				Chaincode:          v.GetString("oracle.gateway.chaincode"),
				IdentityDir:        v.GetString("oracle.gateway.identity_dir"),
			},
		},
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate validates the settings every process reads.
func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Log.Spec) == "" {
		return fmt.Errorf("log.spec is required")
	}

	if cfg.Server.AsService() {
		if cfg.Server.ChaincodeID == "" {
			return fmt.Errorf("server.chaincode_id is required when server.address is set")
		}
		if cfg.Server.TLS.Enabled && (cfg.Server.TLS.KeyFile == "" || cfg.Server.TLS.CertFile == "") {
			return fmt.Errorf("server.tls.key_file and server.tls.cert_file are required when TLS is enabled")
		}
	}

	return nil
}

// Validate checks the settings the oracle simulator needs.
func (o OracleConfig) Validate() error {
	if o.Count <= 0 {
		return fmt.Errorf("oracle.count must be greater than 0")
	}

	if o.MaxAttempts <= 0 {
		return fmt.Errorf("oracle.max_attempts must be greater than 0")
	}

	if o.RetryBackoff < 0 {
		return fmt.Errorf("oracle.retry_backoff must not be negative")
	}

	required := []struct{ key, value string }{
		{"oracle.metrics_address", o.MetricsAddress},
		{"oracle.gateway.endpoint", o.Gateway.Endpoint},
		{"oracle.gateway.msp_id", o.Gateway.MSPID},
		{"oracle.gateway.channel", o.Gateway.Channel},
		{"oracle.gateway.chaincode", o.Gateway.Chaincode},
		{"oracle.gateway.identity_dir", o.Gateway.IdentityDir},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}

	return nil
}
