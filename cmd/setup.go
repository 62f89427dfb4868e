package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/msandoval/tradeterm/internal/broker"
	"github.com/msandoval/tradeterm/pkg/config"
	"go.uber.org/zap"
)

// loadSetup is the shared command preamble: .env, config, logger.
func loadSetup() (*config.Config, *zap.Logger, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	return cfg, logger, nil
}

// connectGateway dials the brokerage gateway and completes the handshake.
func connectGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*broker.Gateway, error) {
	gw := broker.NewGateway(broker.GatewayConfig{
		URL:                  cfg.GatewayURL,
		Account:              cfg.GatewayAccount,
		DialTimeout:          cfg.GatewayDialTimeout,
		ReconnectInitialWait: cfg.GatewayReconnectInitialWait,
		ReconnectMaxWait:     cfg.GatewayReconnectMaxWait,
		EventBufferSize:      cfg.GatewayEventBufferSize,
		Logger:               logger,
	})

	err := gw.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect gateway: %w", err)
	}

	return gw, nil
}
