// Package wormhole builds the Setup -> Implementation -> Wormhole deployment plan.
package wormhole

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// SetupMethod is the initializer invoked on the Setup contract through the Wormhole proxy constructor.
const SetupMethod = "setup"

// SetupArgs are the configured values passed to Setup.setup.
type SetupArgs struct {
	InitialSigners     []common.Address
	ChainID            vaa.ChainID
	GovernanceChainID  vaa.ChainID
	GovernanceContract vaa.Address
	// EVMChainID is only sent when the Setup ABI declares a sixth argument.
	EVMChainID *big.Int
}

// EncodeSetupCall ABI-encodes setup(implementation, signers, chainId, governanceChainId,
// governanceContract[, evmChainId]) against the Setup contract's ABI. No network access.
func EncodeSetupCall(setupABI abi.ABI, implementation common.Address, args SetupArgs) ([]byte, error) {
	method, ok := setupABI.Methods[SetupMethod]
	if !ok {
		return nil, fmt.Errorf("setup abi has no %q method", SetupMethod)
	}

	values := []interface{}{
		implementation,
		args.InitialSigners,
		uint16(args.ChainID),
		uint16(args.GovernanceChainID),
		[32]byte(args.GovernanceContract),
	}

	switch len(method.Inputs) {
	case 5:
	case 6:
		if args.EVMChainID == nil {
			return nil, fmt.Errorf("setup abi takes an evmChainId argument but none is configured")
		}
		values = append(values, args.EVMChainID)
	default:
		return nil, fmt.Errorf("unsupported setup signature %s", method.Sig)
	}

	data, err := setupABI.Pack(SetupMethod, values...)
	if err != nil {
		return nil, fmt.Errorf("encode setup call: %w", err)
	}
	return data, nil
}

// EncodeConstructor ABI-encodes the Wormhole proxy constructor arguments:
// the Setup address and the raw initialization call bytes.
func EncodeConstructor(wormholeABI abi.ABI, setup common.Address, initData []byte) ([]byte, error) {
	if len(wormholeABI.Constructor.Inputs) != 2 {
		return nil, fmt.Errorf("wormhole constructor must take (address, bytes), got %d inputs",
			len(wormholeABI.Constructor.Inputs))
	}

	params, err := wormholeABI.Pack("", setup, initData)
	if err != nil {
		return nil, fmt.Errorf("encode wormhole constructor: %w", err)
	}
	return params, nil
}
