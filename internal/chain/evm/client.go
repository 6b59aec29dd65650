package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Bidon15/wormhole-deployer/internal/deploy"
)

// RPC is the subset of ethclient.Client used for deployment.
type RPC interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Config configures a Client.
type Config struct {
	// Operator, when set, must equal the address derived from the key.
	Operator     common.Address
	PrivateKey   string
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Client implements deploy.Client with legacy contract-creation transactions.
type Client struct {
	rpc          RPC
	signer       *LocalSigner
	chainID      *big.Int
	pollInterval time.Duration
	logger       *slog.Logger
}

var _ deploy.Client = (*Client)(nil)

// Dial connects to rpcURL and returns a client bound to the node's chain id.
// The returned close function releases the connection.
func Dial(ctx context.Context, rpcURL string, cfg Config) (*Client, func(), error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}

	client, err := NewClient(ctx, ec, cfg)
	if err != nil {
		ec.Close()
		return nil, nil, err
	}
	return client, ec.Close, nil
}

// NewClient creates a client over an existing RPC connection.
func NewClient(ctx context.Context, rpc RPC, cfg Config) (*Client, error) {
	signer, err := NewLocalSigner(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	if cfg.Operator != (common.Address{}) && cfg.Operator != signer.Address() {
		return nil, fmt.Errorf("operator %s does not match key address %s", cfg.Operator.Hex(), signer.Address().Hex())
	}

	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	return &Client{
		rpc:          rpc,
		signer:       signer,
		chainID:      chainID,
		pollInterval: pollInterval,
		logger:       logger,
	}, nil
}

// ChainID returns the chain id reported by the node.
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// SubmitContractCreate signs and broadcasts a contract-creation transaction.
// The gas limit is taken as given; nothing is estimated.
func (c *Client) SubmitContractCreate(ctx context.Context, req *deploy.CreateRequest) (*deploy.Submission, error) {
	nonce, err := c.rpc.PendingNonceAt(ctx, c.signer.Address())
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gas price: %w", err)
	}

	data := make([]byte, 0, len(req.Bytecode)+len(req.ConstructorParams))
	data = append(data, req.Bytecode...)
	data = append(data, req.ConstructorParams...)

	tx := types.NewContractCreation(nonce, big.NewInt(0), req.Gas, gasPrice, data)

	signed, err := c.signer.SignTransaction(tx, c.chainID)
	if err != nil {
		return nil, err
	}

	if err := c.rpc.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	c.logger.Debug("contract creation sent",
		slog.String("contract", req.Name),
		slog.String("tx_hash", signed.Hash().Hex()),
		slog.Uint64("nonce", nonce),
	)

	return &deploy.Submission{
		TransactionID: signed.Hash().Hex(),
		Handle:        signed,
	}, nil
}

// Receipt polls until the transaction is mined or ctx is done.
func (c *Client) Receipt(ctx context.Context, sub *deploy.Submission) (*deploy.Receipt, error) {
	tx, ok := sub.Handle.(*types.Transaction)
	if !ok {
		return nil, fmt.Errorf("submission %s was not created by the evm client", sub.TransactionID)
	}

	receipt, err := c.waitForReceipt(ctx, tx.Hash())
	if err != nil {
		return nil, fmt.Errorf("wait for receipt: %w", err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: tx %s status=%d", deploy.ErrReverted, tx.Hash().Hex(), receipt.Status)
	}
	if receipt.ContractAddress == (common.Address{}) {
		return &deploy.Receipt{Status: "SUCCESS"}, nil
	}

	return &deploy.Receipt{
		ContractID: deploy.ContractIDFromAddress(receipt.ContractAddress),
		Status:     "SUCCESS",
	}, nil
}

func (c *Client) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.rpc.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
