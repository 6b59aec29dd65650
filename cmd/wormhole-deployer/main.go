// Command wormhole-deployer deploys the Wormhole core contracts (Setup,
// Implementation and the Wormhole proxy) to Hedera or an EVM JSON-RPC endpoint.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/wormhole-deployer/internal/artifacts"
	"github.com/Bidon15/wormhole-deployer/internal/chain/evm"
	"github.com/Bidon15/wormhole-deployer/internal/chain/hedera"
	"github.com/Bidon15/wormhole-deployer/internal/config"
	"github.com/Bidon15/wormhole-deployer/internal/deploy"
	"github.com/Bidon15/wormhole-deployer/internal/metrics"
	"github.com/Bidon15/wormhole-deployer/internal/wormhole"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger = newLogger(os.Stdout, cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DeployTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DeployTimeout)
		defer cancel()
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Wormhole deploy failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := artifacts.Open(cfg.ArtifactsPath, logger)
	if err != nil {
		return fmt.Errorf("open artifacts: %w", err)
	}

	descriptors, err := wormhole.Plan(store, wormhole.SetupArgs{
		InitialSigners:     cfg.InitialSigners,
		ChainID:            cfg.ChainID,
		GovernanceChainID:  cfg.GovernanceChainID,
		GovernanceContract: cfg.GovernanceContract,
		EVMChainID:         cfg.EVMChainID,
	}, wormhole.GasLimits{
		Setup:          cfg.Gas.Setup,
		Implementation: cfg.Gas.Implementation,
		Wormhole:       cfg.Gas.Wormhole,
	}, logger)
	if err != nil {
		return err
	}

	client, closeClient, err := newClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeClient()

	logger.Info("starting Wormhole deploy",
		slog.String("backend", string(cfg.Backend)),
		slog.String("operator", cfg.OperatorID),
		slog.String("artifacts", store.Source()),
		slog.Int("signers", len(cfg.InitialSigners)),
	)

	recorder := metrics.NewRecorder()
	deployer := deploy.NewDeployer(client, logger, deploy.WithObserver(recorder))

	start := time.Now()
	report, runErr := deployer.Run(ctx, descriptors)

	if cfg.Metrics.Enabled() {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := recorder.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, report.RunID); err != nil {
			logger.Warn("failed to push metrics", slog.String("error", err.Error()))
		}
		cancel()
	}

	if runErr != nil {
		if len(report.Deployments) > 0 {
			printSummary(os.Stdout, report)
		}
		return runErr
	}

	printSummary(os.Stdout, report)
	logger.Info("Wormhole deploy complete",
		slog.String("run_id", report.RunID),
		slog.String("duration", time.Since(start).Round(time.Millisecond).String()),
	)
	return nil
}

func newClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (deploy.Client, func(), error) {
	switch cfg.Backend {
	case config.BackendEVM:
		client, closeFn, err := evm.Dial(ctx, cfg.EVMRPCURL, evm.Config{
			Operator:     common.HexToAddress(cfg.OperatorID),
			PrivateKey:   cfg.OperatorKey,
			PollInterval: cfg.ReceiptPollInterval,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create evm client: %w", err)
		}
		logger.Info("connected to evm endpoint", slog.String("chain_id", client.ChainID().String()))
		return client, closeFn, nil

	default:
		client, err := hedera.NewClient(hedera.Config{
			Network:    cfg.HederaNetwork,
			OperatorID: cfg.OperatorID,
			PrivateKey: cfg.OperatorKey,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create hedera client: %w", err)
		}
		logger.Info("using hedera network", slog.String("network", cfg.HederaNetwork))
		return client, func() {
			if err := client.Close(); err != nil {
				logger.Debug("close hedera client", slog.String("error", err.Error()))
			}
		}, nil
	}
}

func printSummary(w io.Writer, report *deploy.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "CONTRACT\tCONTRACT ID\tADDRESS\tTRANSACTION")
	for _, d := range report.Deployments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.ContractID.String(), d.AddressHex, d.TransactionID)
	}
	fmt.Fprintln(tw)
	tw.Flush()
}
