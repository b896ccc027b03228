package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/michaelpento.lv/arbbot/aa"
	"github.com/michaelpento.lv/arbbot/bundler"
	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/dex/oneinch"
	"github.com/michaelpento.lv/arbbot/dex/uniswap"
	"github.com/michaelpento.lv/arbbot/executor"
	"github.com/michaelpento.lv/arbbot/profit"
	"github.com/michaelpento.lv/arbbot/scanner"
	"github.com/michaelpento.lv/arbbot/types"
	"github.com/michaelpento.lv/arbbot/utils"
	"github.com/michaelpento.lv/arbbot/utils/metrics"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the arbitrage monitoring loop",
	Run: func(cmd *cobra.Command, args []string) {
		log := utils.GetLogger()

		cfg, secrets, pipeline, err := buildPipeline()
		if err != nil {
			log.Fatal("Failed to build pipeline", zap.Error(err))
		}

		exec, err := newExecutor(cfg, secrets, pipeline, log)
		if err != nil {
			log.Fatal("Failed to create executor", zap.Error(err))
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		onResult := func(opportunities []*types.ArbitrageOpportunity) {
			best := opportunities[0]
			log.Info("Opportunities detected",
				zap.Int("count", len(opportunities)),
				zap.String("best_pair", best.Pair.Symbols()),
				zap.Float64("best_percentage", best.ProfitPercentage))

			if !cfg.AutoExecute {
				return
			}
			go func() {
				record, err := exec.Execute(ctx, best)
				if err != nil {
					log.Error("Execution failed",
						zap.String("pair", best.Pair.Symbols()),
						zap.Error(err))
					return
				}
				log.Info("Trade settled",
					zap.String("op_hash", record.OpHash.Hex()),
					zap.String("status", string(record.Status)),
					zap.String("tx_hash", record.TxHash.Hex()))
			}()
		}

		monitor := scanner.NewMonitor(pipeline.scanner, cfg.AmountIn, log)
		handle := monitor.Start(onResult, cfg.ScanInterval)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down gracefully...")
		monitor.Stop(handle)
		cancel()
	},
}

// pipeline bundles the shared scanning components built from config.
type pipeline struct {
	client  *ethclient.Client
	scanner *scanner.Scanner
	calc    *profit.Calculator
}

// buildPipeline loads config, secrets and pairs, and wires the
// scanning side of the bot.
func buildPipeline() (*config.Config, *config.SecureConfig, *pipeline, error) {
	log := utils.GetLogger()

	if err := config.LoadEnv(); err != nil {
		log.Debug("No .env file loaded", zap.Error(err))
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	secrets := config.LoadSecureConfig()

	client, err := ethclient.Dial(cfg.RPCEndpoint)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	quoter, err := uniswap.NewQuoter(client, cfg.UniswapQuoter, cfg.UniswapFeeTier)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create uniswap quoter: %w", err)
	}

	oneInchURL := cfg.OneInchURL
	if oneInchURL == "" {
		oneInchURL = oneinch.DefaultBaseURL
	}
	oneInch := oneinch.NewClient(
		oneInchURL,
		secrets.OneInchAPIKey,
		cfg.SlippageTolerance,
		cfg.OneInchRateLimit.RequestsPerSecond,
		cfg.OneInchRateLimit.BurstSize,
	)

	calc := profit.NewCalculator(cfg.GasPrice, cfg.FlashLoanFeeRate)

	scannerMetrics := metrics.NewScannerMetrics(prometheus.DefaultRegisterer)
	sc := scanner.NewScanner(quoter, oneInch, calc, scannerMetrics, log)
	sc.SetMinProfitThreshold(cfg.MinProfitThreshold)

	pairs, err := config.LoadPairs(cfg.PairsFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load pairs: %w", err)
	}
	for _, pair := range pairs {
		sc.AddPair(pair)
	}

	return cfg, secrets, &pipeline{client: client, scanner: sc, calc: calc}, nil
}

// newExecutor wires the execution side of the bot.
func newExecutor(cfg *config.Config, secrets *config.SecureConfig, p *pipeline, log *zap.Logger) (*executor.Executor, error) {
	if secrets.PrivateKey == "" {
		return nil, fmt.Errorf("%s is not set", config.EnvPrivateKey)
	}
	key, err := crypto.HexToECDSA(secrets.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	builder, err := aa.NewBuilder(p.client, cfg.Paymaster, nil, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create builder: %w", err)
	}

	signer, err := aa.NewSigner(p.client, cfg.EntryPoint, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}

	relay, err := bundler.NewClient(cfg.BundlerURL, secrets.BundlerAPIKey, cfg.EntryPoint, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create bundler client: %w", err)
	}

	execMetrics := metrics.NewExecutionMetrics(prometheus.DefaultRegisterer)
	return executor.New(builder, signer, relay, executor.Config{
		SmartAccount:     cfg.SmartAccount,
		ExecutorContract: cfg.ExecutorContract,
		Recipient:        cfg.Recipient,
		UniswapFeeTier:   cfg.UniswapFeeTier,
		SlippagePercent:  cfg.SlippageTolerance,
		PollInterval:     cfg.PollInterval,
		MaxPollAttempts:  cfg.MaxPollAttempts,
	}, execMetrics, log)
}

func init() {
	rootCmd.AddCommand(startCmd)
}
