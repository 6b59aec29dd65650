package config

import (
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

const (
	testSigners     = `["0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe"]`
	testGovContract = "0x0000000000000000000000000000000000000000000000000000000000000004"
)

// clearEnv blanks every bound key so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(strings.ToUpper(key), "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	clearEnv(t)
	t.Setenv("OPERATOR_ID", "0.0.1001")
	t.Setenv("OPERATOR_PVKEY", "302e020100300506032b657004220420aaaa")
	t.Setenv("INIT_SIGNERS", testSigners)
	t.Setenv("INIT_CHAIN_ID", "22")
	t.Setenv("INIT_GOV_CHAIN_ID", "1")
	t.Setenv("INIT_GOV_CONTRACT", testGovContract)
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "0.0.1001", cfg.OperatorID)
		assert.Equal(t, []common.Address{common.HexToAddress("0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe")}, cfg.InitialSigners)
		assert.Equal(t, vaa.ChainID(22), cfg.ChainID)
		assert.Equal(t, vaa.ChainIDSolana, cfg.GovernanceChainID)
		assert.Equal(t, byte(4), cfg.GovernanceContract[31])
		assert.Nil(t, cfg.EVMChainID)

		assert.Equal(t, BackendHedera, cfg.Backend)
		assert.Equal(t, "testnet", cfg.HederaNetwork)
		assert.Equal(t, "build/contracts", cfg.ArtifactsPath)
		assert.Equal(t, GasConfig{Setup: 100000, Implementation: 100000, Wormhole: 200000}, cfg.Gas)
		assert.Equal(t, 2*time.Second, cfg.ReceiptPollInterval)
		assert.Equal(t, time.Duration(0), cfg.DeployTimeout)
		assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
		assert.Equal(t, "text", cfg.Log.Format)
		assert.False(t, cfg.Metrics.Enabled())
	})

	t.Run("overrides", func(t *testing.T) {
		setRequired(t)
		t.Setenv("INIT_CHAIN_ID", "ethereum")
		t.Setenv("INIT_EVM_CHAIN_ID", "0x127")
		t.Setenv("HEDERA_NETWORK", "mainnet")
		t.Setenv("WORMHOLE_GAS", "3000000")
		t.Setenv("DEPLOY_TIMEOUT", "5m")
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("METRICS_PUSHGATEWAY_URL", "http://localhost:9091")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, vaa.ChainIDEthereum, cfg.ChainID)
		assert.Equal(t, 0, big.NewInt(295).Cmp(cfg.EVMChainID))
		assert.Equal(t, "mainnet", cfg.HederaNetwork)
		assert.Equal(t, uint64(3000000), cfg.Gas.Wormhole)
		assert.Equal(t, 5*time.Minute, cfg.DeployTimeout)
		assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
		assert.True(t, cfg.Metrics.Enabled())
		assert.Equal(t, "wormhole_deployer", cfg.Metrics.Job)
	})

	t.Run("env file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), ".env")
		content := "OPERATOR_ID=0.0.2002\n" +
			"OPERATOR_PVKEY=abcd\n" +
			"INIT_SIGNERS=" + testSigners + "\n" +
			"INIT_CHAIN_ID=22\n" +
			"INIT_GOV_CHAIN_ID=1\n" +
			"INIT_GOV_CONTRACT=" + testGovContract + "\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "0.0.2002", cfg.OperatorID)
		require.Len(t, cfg.InitialSigners, 1)
	})

	t.Run("environment wins over env file", func(t *testing.T) {
		setRequired(t)
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("OPERATOR_ID=0.0.9999\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "0.0.1001", cfg.OperatorID)
	})

	t.Run("missing env file is ignored", func(t *testing.T) {
		setRequired(t)
		_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
		require.NoError(t, err)
	})

	t.Run("missing required keys", func(t *testing.T) {
		setRequired(t)
		t.Setenv("OPERATOR_PVKEY", "")
		t.Setenv("INIT_GOV_CONTRACT", "")

		_, err := Load("")
		require.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), "OPERATOR_PVKEY is required")
		assert.Contains(t, err.Error(), "INIT_GOV_CONTRACT is required")
	})

	t.Run("malformed signers", func(t *testing.T) {
		setRequired(t)
		t.Setenv("INIT_SIGNERS", `["0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe"`)

		_, err := Load("")
		require.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), "INIT_SIGNERS")
	})

	t.Run("unknown backend", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DEPLOY_BACKEND", "solana")

		_, err := Load("")
		require.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), "DEPLOY_BACKEND must be one of [hedera evm]")
	})

	t.Run("evm backend needs rpc url and hex operator", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DEPLOY_BACKEND", "evm")

		_, err := Load("")
		require.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), "EVM_RPC_URL is required")

		t.Setenv("EVM_RPC_URL", "http://localhost:8545")
		_, err = Load("")
		require.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), "OPERATOR_ID must be a hex address")

		t.Setenv("OPERATOR_ID", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, BackendEVM, cfg.Backend)
	})

	t.Run("governance contract must be exactly 32 bytes", func(t *testing.T) {
		for _, value := range []string{
			"0x04",
			"0x" + strings.Repeat("00", 31) + "04" + "ff",
			"0x" + strings.Repeat("zz", 32),
		} {
			setRequired(t)
			t.Setenv("INIT_GOV_CONTRACT", value)

			_, err := Load("")
			require.ErrorIs(t, err, ErrInvalid, value)
			assert.Contains(t, err.Error(), "INIT_GOV_CONTRACT", value)
		}
	})

	t.Run("governance contract without prefix", func(t *testing.T) {
		setRequired(t)
		t.Setenv("INIT_GOV_CONTRACT", strings.TrimPrefix(testGovContract, "0x"))

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, byte(4), cfg.GovernanceContract[31])
		assert.Equal(t, make([]byte, 31), cfg.GovernanceContract[:31])
	})

	t.Run("bad gas value", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SETUP_GAS", "lots")

		_, err := Load("")
		require.ErrorIs(t, err, ErrInvalid)
	})
}

func TestParseSigners(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr string
	}{
		{name: "two signers", input: `["0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe","0x88D7D8B32a9105d228100E72dFFe2Fae0705D31c"]`, want: 2},
		{name: "not json", input: `0xbeFA`, wantErr: "JSON array"},
		{name: "empty list", input: `[]`, wantErr: "at least one signer"},
		{name: "bad entry", input: `["0x1234"]`, wantErr: "entry 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSigners(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestParseChainID(t *testing.T) {
	id, err := ParseChainID(" 22 ")
	require.NoError(t, err)
	assert.Equal(t, vaa.ChainID(22), id)

	id, err = ParseChainID("0x16")
	require.NoError(t, err)
	assert.Equal(t, vaa.ChainID(22), id)

	id, err = ParseChainID("022")
	require.NoError(t, err)
	assert.Equal(t, vaa.ChainID(22), id)

	id, err = ParseChainID("solana")
	require.NoError(t, err)
	assert.Equal(t, vaa.ChainIDSolana, id)

	_, err = ParseChainID("70000")
	require.Error(t, err)

	_, err = ParseChainID("0x10000")
	require.Error(t, err)
}

func TestParseGovernanceContract(t *testing.T) {
	want := vaa.Address{31: 0x04}

	got, err := ParseGovernanceContract(testGovContract)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = ParseGovernanceContract("  " + strings.ToUpper(strings.TrimPrefix(testGovContract, "0x")) + "  ")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ParseGovernanceContract("0x04")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be 32 bytes, got 1")

	_, err = ParseGovernanceContract("0x" + strings.Repeat("11", 33))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be 32 bytes, got 33")
}
