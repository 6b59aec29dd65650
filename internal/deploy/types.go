// Package deploy submits contract-creation transactions and runs ordered deployment sequences.
package deploy

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Bidon15/wormhole-deployer/internal/artifacts"
)

var (
	// ErrNoContractID is returned when a receipt does not name a created contract.
	ErrNoContractID = errors.New("receipt has no contract id")

	// ErrReverted is returned by clients when the creation transaction failed on chain.
	ErrReverted = errors.New("contract creation reverted")
)

// Client submits contract-creation transactions for a single operator on a single network.
// Submission and receipt retrieval are separate calls so that each step is awaited explicitly.
type Client interface {
	SubmitContractCreate(ctx context.Context, req *CreateRequest) (*Submission, error)
	Receipt(ctx context.Context, sub *Submission) (*Receipt, error)
}

// CreateRequest describes one contract-creation transaction.
type CreateRequest struct {
	Name              string
	Bytecode          []byte
	Gas               uint64
	ConstructorParams []byte
}

// Submission is an acknowledged, not yet confirmed, transaction.
type Submission struct {
	// TransactionID is the backend's transaction identifier (Hedera tx id or EVM tx hash).
	TransactionID string
	// Handle carries backend-specific state needed to fetch the receipt.
	Handle any
}

// Receipt is the confirmed outcome of a contract-creation transaction.
type Receipt struct {
	ContractID *ContractID
	Status     string
}

// ContractID identifies a deployed contract.
// Hedera contracts are addressed by shard.realm.num; EVM chains only have an address.
type ContractID struct {
	Shard      uint64
	Realm      uint64
	Num        uint64
	EVMAddress []byte
}

// ContractIDFromAddress wraps a plain EVM address.
func ContractIDFromAddress(addr common.Address) *ContractID {
	return &ContractID{EVMAddress: addr.Bytes()}
}

// String returns the native identifier form.
func (id ContractID) String() string {
	if id.Num == 0 && len(id.EVMAddress) == common.AddressLength {
		return hexutil.Encode(id.EVMAddress)
	}
	return fmt.Sprintf("%d.%d.%d", id.Shard, id.Realm, id.Num)
}

// SolidityAddress returns the 20-byte address the EVM sees for this contract.
// Without an explicit EVM address this is the long-zero layout:
// 4 bytes shard, 8 bytes realm, 8 bytes num, all big-endian.
func (id ContractID) SolidityAddress() common.Address {
	if len(id.EVMAddress) == common.AddressLength {
		return common.BytesToAddress(id.EVMAddress)
	}

	var addr common.Address
	binary.BigEndian.PutUint32(addr[0:4], uint32(id.Shard))
	binary.BigEndian.PutUint64(addr[4:12], id.Realm)
	binary.BigEndian.PutUint64(addr[12:20], id.Num)
	return addr
}

// Deployment is the record of one deployed contract.
type Deployment struct {
	Name          string
	ContractID    ContractID
	Address       common.Address
	AddressHex    string
	TransactionID string
	Status        string
	Gas           uint64
	BytecodeLen   int
}

// AddressString returns the hex-prefixed lowercase address form.
func AddressString(addr common.Address) string {
	return hexutil.Encode(addr.Bytes())
}

// ParamsBuilder produces ABI-encoded constructor parameters for a descriptor.
// It may read deployments that completed earlier in the same run.
type ParamsBuilder func(report *Report) ([]byte, error)

// NoParams is the ParamsBuilder for contracts whose constructor takes no arguments.
func NoParams(*Report) ([]byte, error) {
	return nil, nil
}

// Descriptor is one step of a deployment sequence.
type Descriptor struct {
	Name     string
	Artifact *artifacts.ContractArtifact
	Gas      uint64
	Params   ParamsBuilder
}

// Report collects the deployments of one run in order.
type Report struct {
	RunID       string
	Deployments []*Deployment
}

// Get returns the deployment with the given name.
func (r *Report) Get(name string) (*Deployment, bool) {
	for _, d := range r.Deployments {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Address returns the address of a completed deployment, or an error naming
// the missing dependency.
func (r *Report) Address(name string) (common.Address, error) {
	d, ok := r.Get(name)
	if !ok {
		return common.Address{}, fmt.Errorf("%s has not been deployed yet", name)
	}
	return d.Address, nil
}

// StageError reports which contract and which step of its deployment failed.
type StageError struct {
	Contract string
	Stage    string
	Err      error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("deploy %s: %s: %v", e.Contract, e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Deployment stages reported in StageError.
const (
	StageParams   = "params"
	StageBytecode = "bytecode"
	StageSubmit   = "submit"
	StageReceipt  = "receipt"
)
