// Package hedera deploys contracts through the Hedera native SDK.
package hedera

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	hsdk "github.com/hashgraph/hedera-sdk-go/v2"

	"github.com/Bidon15/wormhole-deployer/internal/deploy"
)

// NetworkLocalNode selects a hedera-local-node instance on the default ports.
const NetworkLocalNode = "local-node"

// Config configures a Client.
type Config struct {
	Network    string
	OperatorID string
	PrivateKey string
	Logger     *slog.Logger
}

// Client implements deploy.Client with ContractCreateFlow.
// The SDK is not context-aware, so ctx is only checked between calls.
type Client struct {
	sdk    *hsdk.Client
	logger *slog.Logger

	execute func(req *deploy.CreateRequest) (hsdk.TransactionResponse, error)
	receipt func(resp hsdk.TransactionResponse) (hsdk.TransactionReceipt, error)
}

var _ deploy.Client = (*Client)(nil)

// NewClient builds an SDK client for cfg.Network with the operator set.
func NewClient(cfg Config) (*Client, error) {
	accountID, err := hsdk.AccountIDFromString(cfg.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("parse operator id: %w", err)
	}

	key, err := hsdk.PrivateKeyFromString(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parse operator key: %w", err)
	}

	sdk, err := clientForNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	sdk.SetOperator(accountID, key)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{sdk: sdk, logger: logger}
	c.execute = c.executeFlow
	c.receipt = c.fetchReceipt
	return c, nil
}

func clientForNetwork(network string) (*hsdk.Client, error) {
	if network == NetworkLocalNode {
		sdk := hsdk.ClientForNetwork(map[string]hsdk.AccountID{
			"127.0.0.1:50211": {Account: 3},
		})
		sdk.SetMirrorNetwork([]string{"127.0.0.1:5600"})
		return sdk, nil
	}

	sdk, err := hsdk.ClientForName(network)
	if err != nil {
		return nil, fmt.Errorf("create client for %q: %w", network, err)
	}
	return sdk, nil
}

// Close releases the SDK connections.
func (c *Client) Close() error {
	return c.sdk.Close()
}

// SubmitContractCreate uploads the bytecode and creates the contract.
func (c *Client) SubmitContractCreate(ctx context.Context, req *deploy.CreateRequest) (*deploy.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Gas > math.MaxInt64 {
		return nil, fmt.Errorf("gas %d exceeds int64", req.Gas)
	}

	resp, err := c.execute(req)
	if err != nil {
		return nil, fmt.Errorf("execute contract create flow: %w", err)
	}

	txID := resp.TransactionID.String()
	c.logger.Debug("contract create flow executed",
		slog.String("contract", req.Name),
		slog.String("tx_id", txID),
	)

	return &deploy.Submission{TransactionID: txID, Handle: resp}, nil
}

// Receipt fetches the receipt of a submitted flow.
func (c *Client) Receipt(ctx context.Context, sub *deploy.Submission) (*deploy.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, ok := sub.Handle.(hsdk.TransactionResponse)
	if !ok {
		return nil, fmt.Errorf("submission %s was not created by the hedera client", sub.TransactionID)
	}

	receipt, err := c.receipt(resp)
	if err != nil {
		return nil, fmt.Errorf("get receipt: %w", err)
	}

	return &deploy.Receipt{
		ContractID: contractIDFromSDK(receipt.ContractID),
		Status:     receipt.Status.String(),
	}, nil
}

func (c *Client) executeFlow(req *deploy.CreateRequest) (hsdk.TransactionResponse, error) {
	flow := hsdk.NewContractCreateFlow().
		SetGas(int64(req.Gas)).
		SetBytecode(req.Bytecode)
	if len(req.ConstructorParams) > 0 {
		flow.SetConstructorParametersRaw(req.ConstructorParams)
	}
	return flow.Execute(c.sdk)
}

func (c *Client) fetchReceipt(resp hsdk.TransactionResponse) (hsdk.TransactionReceipt, error) {
	return resp.GetReceipt(c.sdk)
}

func contractIDFromSDK(id *hsdk.ContractID) *deploy.ContractID {
	if id == nil {
		return nil
	}
	return &deploy.ContractID{
		Shard:      id.Shard,
		Realm:      id.Realm,
		Num:        id.Contract,
		EVMAddress: id.EvmAddress,
	}
}
