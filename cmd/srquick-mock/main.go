package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MarkoPoloResearchLab/srquick/internal/logging"
	"github.com/MarkoPoloResearchLab/srquick/internal/mockbackend"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagListenAddr     = "listen-addr"
	flagGatewayAddr    = "gateway-addr"
	flagCloudService   = "cloud-service"
	flagEnvironment    = "env"
	flagAllowedOrigins = "allowed-origins"
	flagDevTokenSecret = "dev-token-secret"
	flagRate           = "rate"
	flagBurst          = "burst"
	flagLogLevel       = "log-level"
	envPrefix          = "SRQUICK_MOCK"
	defaultLogLevel    = "info"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "srquick-mock: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := mockbackend.Config{}
	logLevel := defaultLogLevel
	cmd := &cobra.Command{
		Use:           "srquick-mock",
		Short:         "In-memory SR-Quick backend for local development",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, &cfg, &logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger, err := logging.New(logLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			backend, err := mockbackend.New(cfg, mockbackend.WithLogger(logger))
			if err != nil {
				return err
			}
			return backend.Run(ctx)
		},
	}

	cmd.Flags().String(flagListenAddr, "", "HTTP listen address (default :3000)")
	cmd.Flags().String(flagGatewayAddr, "", "container gateway gRPC listen address (disabled when empty)")
	cmd.Flags().String(flagCloudService, "", "service name the gateway accepts (any when empty)")
	cmd.Flags().String(flagEnvironment, "", "environment name reported by /health")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	cmd.Flags().String(flagDevTokenSecret, "", "HMAC secret accepted for dev bearer tokens")
	cmd.Flags().Int(flagRate, 0, "requests per second allowed per identity")
	cmd.Flags().Int(flagBurst, 0, "burst size per identity")
	cmd.Flags().String(flagLogLevel, defaultLogLevel, "log level (debug, info, warn, error)")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *mockbackend.Config, logLevel *string) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, flagName := range []string{flagListenAddr, flagGatewayAddr, flagCloudService, flagEnvironment, flagAllowedOrigins, flagDevTokenSecret, flagRate, flagBurst, flagLogLevel} {
		if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.ListenAddr = strings.TrimSpace(v.GetString(flagListenAddr))
	cfg.GatewayAddr = strings.TrimSpace(v.GetString(flagGatewayAddr))
	cfg.CloudService = strings.TrimSpace(v.GetString(flagCloudService))
	cfg.Environment = strings.TrimSpace(v.GetString(flagEnvironment))
	cfg.AllowedOrigins = mockbackend.ParseAllowedOrigins(v.GetString(flagAllowedOrigins))
	cfg.DevTokenSecret = v.GetString(flagDevTokenSecret)
	cfg.RatePerSecond = v.GetInt(flagRate)
	cfg.RateBurst = v.GetInt(flagBurst)
	*logLevel = strings.TrimSpace(v.GetString(flagLogLevel))

	return cfg.Validate()
}
