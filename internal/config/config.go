// Package config loads the deployer configuration from the environment and an optional .env file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// ErrInvalid is returned for any missing or malformed setting.
var ErrInvalid = errors.New("invalid configuration")

// DefaultEnvFile is read when present in the working directory.
const DefaultEnvFile = ".env"

// Backend selects the chain client used for deployment.
type Backend string

const (
	BackendHedera Backend = "hedera"
	BackendEVM    Backend = "evm"
)

// Config holds the parsed configuration. It is built once by Load and never mutated.
type Config struct {
	OperatorID  string
	OperatorKey string

	InitialSigners     []common.Address
	ChainID            vaa.ChainID
	GovernanceChainID  vaa.ChainID
	GovernanceContract vaa.Address
	EVMChainID         *big.Int

	Backend       Backend
	HederaNetwork string
	EVMRPCURL     string
	ArtifactsPath string

	Gas                 GasConfig
	ReceiptPollInterval time.Duration
	DeployTimeout       time.Duration

	Log     LogConfig
	Metrics MetricsConfig
}

// GasConfig holds the gas limit of each contract-creation transaction.
type GasConfig struct {
	Setup          uint64
	Implementation uint64
	Wormhole       uint64
}

// LogConfig holds slog handler settings.
type LogConfig struct {
	Level  string
	Format string // text, json
}

// SlogLevel returns the configured level, falling back to info.
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// MetricsConfig holds the optional Pushgateway target.
type MetricsConfig struct {
	PushgatewayURL string
	Job            string
}

// Enabled reports whether metrics should be pushed after the run.
func (c MetricsConfig) Enabled() bool {
	return c.PushgatewayURL != ""
}

// rawConfig mirrors the environment one-to-one before parsing.
type rawConfig struct {
	OperatorID      string `mapstructure:"operator_id" validate:"required"`
	OperatorKey     string `mapstructure:"operator_pvkey" validate:"required"`
	InitSigners     string `mapstructure:"init_signers" validate:"required"`
	InitChainID     string `mapstructure:"init_chain_id" validate:"required"`
	InitGovChainID  string `mapstructure:"init_gov_chain_id" validate:"required"`
	InitGovContract string `mapstructure:"init_gov_contract" validate:"required"`
	InitEVMChainID  string `mapstructure:"init_evm_chain_id"`

	Backend       string `mapstructure:"deploy_backend" validate:"oneof=hedera evm"`
	HederaNetwork string `mapstructure:"hedera_network" validate:"oneof=mainnet testnet previewnet local-node"`
	EVMRPCURL     string `mapstructure:"evm_rpc_url" validate:"required_if=Backend evm,omitempty,url"`
	ArtifactsPath string `mapstructure:"artifacts_path" validate:"required"`

	SetupGas          uint64 `mapstructure:"setup_gas" validate:"gt=0"`
	ImplementationGas uint64 `mapstructure:"implementation_gas" validate:"gt=0"`
	WormholeGas       uint64 `mapstructure:"wormhole_gas" validate:"gt=0"`

	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval" validate:"gt=0"`
	DeployTimeout       time.Duration `mapstructure:"deploy_timeout" validate:"gte=0"`

	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=text json"`

	MetricsPushgatewayURL string `mapstructure:"metrics_pushgateway_url" validate:"omitempty,url"`
	MetricsJob            string `mapstructure:"metrics_job"`
}

var keys = []string{
	"operator_id",
	"operator_pvkey",
	"init_signers",
	"init_chain_id",
	"init_gov_chain_id",
	"init_gov_contract",
	"init_evm_chain_id",
	"deploy_backend",
	"hedera_network",
	"evm_rpc_url",
	"artifacts_path",
	"setup_gas",
	"implementation_gas",
	"wormhole_gas",
	"receipt_poll_interval",
	"deploy_timeout",
	"log_level",
	"log_format",
	"metrics_pushgateway_url",
	"metrics_job",
}

// Load reads the environment, overlaid on envFile when that file exists, and
// returns the parsed configuration. Pass an empty envFile to skip the file.
func Load(envFile string) (*Config, error) {
	v := viper.New()

	// Keys are bound to their exact upper-case names, no prefix.
	for _, key := range keys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	setDefaults(v)

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat env file %s: %w", envFile, err)
		}
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := validate(&raw); err != nil {
		return nil, err
	}

	return parse(&raw)
}

// setDefaults configures default values for the optional settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("deploy_backend", string(BackendHedera))
	v.SetDefault("hedera_network", "testnet")
	v.SetDefault("artifacts_path", "build/contracts")

	// Gas defaults
	v.SetDefault("setup_gas", 100000)
	v.SetDefault("implementation_gas", 100000)
	v.SetDefault("wormhole_gas", 200000)

	v.SetDefault("receipt_poll_interval", "2s")
	v.SetDefault("deploy_timeout", "0s")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("metrics_job", "wormhole_deployer")
}

func validate(raw *rawConfig) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.ToUpper(f.Tag.Get("mapstructure"))
	})

	err := validate.Struct(raw)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_if":
			problems = append(problems, fe.Field()+" is required")
		case "oneof":
			problems = append(problems, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			problems = append(problems, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

func parse(raw *rawConfig) (*Config, error) {
	signers, err := ParseSigners(raw.InitSigners)
	if err != nil {
		return nil, fmt.Errorf("%w: INIT_SIGNERS: %v", ErrInvalid, err)
	}

	chainID, err := ParseChainID(raw.InitChainID)
	if err != nil {
		return nil, fmt.Errorf("%w: INIT_CHAIN_ID: %v", ErrInvalid, err)
	}

	govChainID, err := ParseChainID(raw.InitGovChainID)
	if err != nil {
		return nil, fmt.Errorf("%w: INIT_GOV_CHAIN_ID: %v", ErrInvalid, err)
	}

	govContract, err := ParseGovernanceContract(raw.InitGovContract)
	if err != nil {
		return nil, fmt.Errorf("%w: INIT_GOV_CONTRACT: %v", ErrInvalid, err)
	}

	var evmChainID *big.Int
	if s := strings.TrimSpace(raw.InitEVMChainID); s != "" {
		n, ok := new(big.Int).SetString(s, 0)
		if !ok || n.Sign() < 0 {
			return nil, fmt.Errorf("%w: INIT_EVM_CHAIN_ID: %q is not a non-negative integer", ErrInvalid, s)
		}
		evmChainID = n
	}

	cfg := &Config{
		OperatorID:          strings.TrimSpace(raw.OperatorID),
		OperatorKey:         strings.TrimSpace(raw.OperatorKey),
		InitialSigners:      signers,
		ChainID:             chainID,
		GovernanceChainID:   govChainID,
		GovernanceContract:  govContract,
		EVMChainID:          evmChainID,
		Backend:             Backend(raw.Backend),
		HederaNetwork:       raw.HederaNetwork,
		EVMRPCURL:           raw.EVMRPCURL,
		ArtifactsPath:       raw.ArtifactsPath,
		ReceiptPollInterval: raw.ReceiptPollInterval,
		DeployTimeout:       raw.DeployTimeout,
		Gas: GasConfig{
			Setup:          raw.SetupGas,
			Implementation: raw.ImplementationGas,
			Wormhole:       raw.WormholeGas,
		},
		Log: LogConfig{
			Level:  raw.LogLevel,
			Format: raw.LogFormat,
		},
		Metrics: MetricsConfig{
			PushgatewayURL: raw.MetricsPushgatewayURL,
			Job:            raw.MetricsJob,
		},
	}

	if cfg.Backend == BackendEVM && !common.IsHexAddress(cfg.OperatorID) {
		return nil, fmt.Errorf("%w: OPERATOR_ID must be a hex address for the evm backend", ErrInvalid)
	}

	return cfg, nil
}

// ParseSigners decodes a JSON array of hex addresses.
func ParseSigners(s string) ([]common.Address, error) {
	var entries []string
	if err := json.Unmarshal([]byte(s), &entries); err != nil {
		return nil, fmt.Errorf("expected a JSON array of addresses: %w", err)
	}
	if len(entries) == 0 {
		return nil, errors.New("at least one signer is required")
	}

	signers := make([]common.Address, 0, len(entries))
	for i, entry := range entries {
		if !common.IsHexAddress(entry) {
			return nil, fmt.Errorf("entry %d: %q is not an address", i, entry)
		}
		signers = append(signers, common.HexToAddress(entry))
	}
	return signers, nil
}

// ParseGovernanceContract decodes exactly 32 bytes of hex, with or without "0x".
// Shorter values are rejected rather than padded.
func ParseGovernanceContract(s string) (vaa.Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}

	b, err := hexutil.Decode(s)
	if err != nil {
		return vaa.Address{}, fmt.Errorf("decode hex: %w", err)
	}
	if len(b) != 32 {
		return vaa.Address{}, fmt.Errorf("must be 32 bytes, got %d", len(b))
	}

	var addr vaa.Address
	copy(addr[:], b)
	return addr, nil
}

// ParseChainID accepts a decimal or 0x-prefixed hex Wormhole chain id, or a known chain name.
func ParseChainID(s string) (vaa.ChainID, error) {
	s = strings.TrimSpace(s)
	digits, base := s, 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits, base = s[2:], 16
	}
	if n, err := strconv.ParseUint(digits, base, 16); err == nil {
		return vaa.ChainID(n), nil
	}
	id, err := vaa.ChainIDFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a uint16 nor a known chain name", s)
	}
	return id, nil
}
