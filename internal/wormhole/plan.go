package wormhole

import (
	"fmt"
	"log/slog"

	"github.com/Bidon15/wormhole-deployer/internal/artifacts"
	"github.com/Bidon15/wormhole-deployer/internal/deploy"
)

// Contract names, which double as artifact names.
const (
	ContractSetup          = "Setup"
	ContractImplementation = "Implementation"
	ContractWormhole       = "Wormhole"
)

// GasLimits holds the fixed gas limit of each contract-creation transaction.
type GasLimits struct {
	Setup          uint64
	Implementation uint64
	Wormhole       uint64
}

// ArtifactLoader resolves artifacts by contract name.
type ArtifactLoader interface {
	Load(name string) (*artifacts.ContractArtifact, error)
}

// Plan returns the three deployment descriptors in dependency order.
// ABIs are parsed up front so that a broken artifact fails before anything is deployed.
func Plan(loader ArtifactLoader, args SetupArgs, gas GasLimits, logger *slog.Logger) ([]deploy.Descriptor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	setup, err := loader.Load(ContractSetup)
	if err != nil {
		return nil, fmt.Errorf("load %s artifact: %w", ContractSetup, err)
	}
	implementation, err := loader.Load(ContractImplementation)
	if err != nil {
		return nil, fmt.Errorf("load %s artifact: %w", ContractImplementation, err)
	}
	wormhole, err := loader.Load(ContractWormhole)
	if err != nil {
		return nil, fmt.Errorf("load %s artifact: %w", ContractWormhole, err)
	}

	setupABI, err := setup.ParsedABI()
	if err != nil {
		return nil, err
	}
	wormholeABI, err := wormhole.ParsedABI()
	if err != nil {
		return nil, err
	}

	wormholeParams := func(report *deploy.Report) ([]byte, error) {
		setupAddr, err := report.Address(ContractSetup)
		if err != nil {
			return nil, err
		}
		implAddr, err := report.Address(ContractImplementation)
		if err != nil {
			return nil, err
		}

		logger.Info("generating setup initialization data",
			slog.String("setup", deploy.AddressString(setupAddr)),
			slog.String("implementation", deploy.AddressString(implAddr)),
			slog.Int("signers", len(args.InitialSigners)),
			slog.String("chain_id", args.ChainID.String()),
			slog.String("governance_chain_id", args.GovernanceChainID.String()),
		)

		initData, err := EncodeSetupCall(setupABI, implAddr, args)
		if err != nil {
			return nil, err
		}
		return EncodeConstructor(wormholeABI, setupAddr, initData)
	}

	return []deploy.Descriptor{
		{Name: ContractSetup, Artifact: setup, Gas: gas.Setup, Params: deploy.NoParams},
		{Name: ContractImplementation, Artifact: implementation, Gas: gas.Implementation, Params: deploy.NoParams},
		{Name: ContractWormhole, Artifact: wormhole, Gas: gas.Wormhole, Params: wormholeParams},
	}, nil
}
