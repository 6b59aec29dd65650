// Package artifacts loads pre-built contract artifacts (bytecode and ABI) from a build output
// directory or a zstd-compressed tar bundle.
package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrArtifactNotFound is returned when a store has no artifact for a contract name.
var ErrArtifactNotFound = errors.New("artifact not found")

// ContractArtifact represents a compiled Solidity contract with ABI and bytecode.
type ContractArtifact struct {
	ABI          json.RawMessage `json:"abi"`
	Bytecode     Bytecode        `json:"bytecode"`
	ContractName string          `json:"contractName,omitempty"`
}

// Bytecode contains the contract creation bytecode.
// It handles both formats:
// - Simple string: "0x608060..." (Truffle/Hardhat)
// - Object with "object" field: {"object": "0x608060..."} (Foundry)
type Bytecode struct {
	hex string
}

// UnmarshalJSON handles both string and object bytecode formats.
func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.hex = s
		return nil
	}

	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		b.hex = obj.Object
		return nil
	}

	return fmt.Errorf("bytecode must be a string or object with 'object' field")
}

// String returns the bytecode hex string as found in the artifact.
func (b Bytecode) String() string {
	return b.hex
}

// Parse decodes an artifact from its JSON form. The name is used when the
// artifact itself does not carry a contractName.
func Parse(name string, data []byte) (*ContractArtifact, error) {
	var artifact ContractArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", name, err)
	}
	if artifact.ContractName == "" {
		artifact.ContractName = name
	}
	return &artifact, nil
}

// BytecodeBytes returns the creation bytecode as raw bytes.
// Unlinked library placeholders are rejected by the hex decoder.
func (a *ContractArtifact) BytecodeBytes() ([]byte, error) {
	code := strings.TrimSpace(a.Bytecode.hex)
	if code == "" || code == "0x" {
		return nil, fmt.Errorf("empty bytecode for %s", a.ContractName)
	}
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	raw, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode for %s: %w", a.ContractName, err)
	}
	return raw, nil
}

// ParsedABI parses the artifact's ABI description.
func (a *ContractArtifact) ParsedABI() (abi.ABI, error) {
	if len(a.ABI) == 0 {
		return abi.ABI{}, fmt.Errorf("artifact %s has no abi", a.ContractName)
	}
	parsed, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse %s abi: %w", a.ContractName, err)
	}
	return parsed, nil
}
