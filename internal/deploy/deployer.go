package deploy

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Observer receives the outcome of every deployment.
type Observer interface {
	ObserveDeploy(contract string, gas uint64, elapsed time.Duration, err error)
}

// Deployer deploys contracts through a single Client.
// It holds no mutable state besides the client it was given.
type Deployer struct {
	client   Client
	logger   *slog.Logger
	observer Observer
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(d *Deployer) {
		d.observer = o
	}
}

// NewDeployer creates a deployer bound to client.
func NewDeployer(client Client, logger *slog.Logger, opts ...Option) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Deployer{
		client: client,
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deploy submits a contract-creation transaction, awaits its receipt and
// returns the created contract in both its native and solidity address forms.
func (d *Deployer) Deploy(
	ctx context.Context,
	name string,
	bytecode []byte,
	gas uint64,
	constructorParams []byte,
) (*Deployment, error) {
	d.logger.Info("deploying contract",
		slog.String("contract", name),
		slog.Uint64("gas", gas),
		slog.Int("bytecode_len", len(bytecode)),
	)

	start := time.Now()
	deployment, err := d.deploy(ctx, name, bytecode, gas, constructorParams)
	if d.observer != nil {
		d.observer.ObserveDeploy(name, gas, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}

	d.logger.Info("deployed contract",
		slog.String("contract", name),
		slog.String("contract_id", deployment.ContractID.String()),
		slog.String("address", deployment.AddressHex),
		slog.String("tx_id", deployment.TransactionID),
		slog.String("status", deployment.Status),
	)

	return deployment, nil
}

func (d *Deployer) deploy(
	ctx context.Context,
	name string,
	bytecode []byte,
	gas uint64,
	constructorParams []byte,
) (*Deployment, error) {
	sub, err := d.client.SubmitContractCreate(ctx, &CreateRequest{
		Name:              name,
		Bytecode:          bytecode,
		Gas:               gas,
		ConstructorParams: constructorParams,
	})
	if err != nil {
		return nil, &StageError{Contract: name, Stage: StageSubmit, Err: err}
	}

	d.logger.Debug("transaction submitted",
		slog.String("contract", name),
		slog.String("tx_id", sub.TransactionID),
	)

	receipt, err := d.client.Receipt(ctx, sub)
	if err != nil {
		return nil, &StageError{Contract: name, Stage: StageReceipt, Err: err}
	}
	if receipt == nil || receipt.ContractID == nil {
		return nil, &StageError{Contract: name, Stage: StageReceipt, Err: ErrNoContractID}
	}

	addr := receipt.ContractID.SolidityAddress()
	return &Deployment{
		Name:          name,
		ContractID:    *receipt.ContractID,
		Address:       addr,
		AddressHex:    AddressString(addr),
		TransactionID: sub.TransactionID,
		Status:        receipt.Status,
		Gas:           gas,
		BytecodeLen:   len(bytecode),
	}, nil
}

// Run deploys descriptors strictly in order. The first failure stops the run;
// the returned report holds every deployment that completed before it.
func (d *Deployer) Run(ctx context.Context, descriptors []Descriptor) (*Report, error) {
	report := &Report{RunID: NewRunID()}
	logger := d.logger.With(slog.String("run_id", report.RunID))

	logger.Info("starting deployment sequence", slog.Int("contracts", len(descriptors)))

	for _, desc := range descriptors {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("deploy %s: %w", desc.Name, err)
		}

		params := NoParams
		if desc.Params != nil {
			params = desc.Params
		}
		constructorParams, err := params(report)
		if err != nil {
			return report, &StageError{Contract: desc.Name, Stage: StageParams, Err: err}
		}

		if desc.Artifact == nil {
			return report, &StageError{Contract: desc.Name, Stage: StageBytecode, Err: fmt.Errorf("no artifact")}
		}
		bytecode, err := desc.Artifact.BytecodeBytes()
		if err != nil {
			return report, &StageError{Contract: desc.Name, Stage: StageBytecode, Err: err}
		}

		deployment, err := d.Deploy(ctx, desc.Name, bytecode, desc.Gas, constructorParams)
		if err != nil {
			return report, err
		}
		report.Deployments = append(report.Deployments, deployment)
	}

	logger.Info("deployment sequence complete", slog.Int("deployed", len(report.Deployments)))
	return report, nil
}

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewRunID returns a ULID identifying one deployment run.
func NewRunID() string {
	entropyLock.Lock()
	defer entropyLock.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
