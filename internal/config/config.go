// Package config loads SR-Quick client settings from flags, the environment
// and optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/MarkoPoloResearchLab/srquick/pkg/imageref"
	"github.com/MarkoPoloResearchLab/srquick/pkg/transport"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Setting keys double as flag names.
const (
	KeyUseLocalAPI     = "use-local-api"
	KeyAPIBaseURL      = "api-base-url"
	KeyCloudEnv        = "cloud-env"
	KeyCloudService    = "cloud-service"
	KeyEnvironment     = "env"
	KeyAssetBase       = "asset-base"
	KeyAssetPrefix     = "asset-prefix"
	KeyGatewayAddr     = "cloud-gateway-addr"
	KeyGatewayInsecure = "cloud-gateway-insecure"
	KeyOpenID          = "openid"
	KeyDevOpenID       = "dev-openid"
	KeyDevTokenSecret  = "dev-token-secret"
	KeySignEndpoint    = "sign-endpoint"
	KeySignAccessToken = "sign-access-token"
	KeyStorageURL      = "storage-url"
	KeyLogLevel        = "log-level"
)

const (
	hostEnvPrefix      = "TARO_APP_"
	defaultEnvironment = "development"
	defaultLogLevel    = "info"
	defaultStorageDir  = ".srquick"
	defaultStorageFile = "state.db"
	defaultEnvFile     = ".env"
)

// ErrInvalidConfig reports settings that cannot be used.
var ErrInvalidConfig = errors.New("invalid config")

// Config aggregates runtime settings for the client.
type Config struct {
	UseLocalAPI     bool
	APIBaseURL      string
	CloudEnv        string
	CloudService    string
	Environment     string
	AssetBase       string
	AssetPrefix     string
	GatewayAddr     string
	GatewayInsecure bool
	OpenID          string
	DevOpenID       string
	DevTokenSecret  string
	SignEndpoint    string
	SignAccessToken string
	StorageURL      string
	LogLevel        string
}

// hostPrefixed settings are also read with the TARO_APP_ prefix.
var hostPrefixed = map[string]bool{
	KeyUseLocalAPI:  true,
	KeyAPIBaseURL:   true,
	KeyCloudEnv:     true,
	KeyCloudService: true,
	KeyEnvironment:  true,
	KeyAssetBase:    true,
}

var allKeys = []string{
	KeyUseLocalAPI, KeyAPIBaseURL, KeyCloudEnv, KeyCloudService, KeyEnvironment,
	KeyAssetBase, KeyAssetPrefix, KeyGatewayAddr, KeyGatewayInsecure, KeyOpenID,
	KeyDevOpenID, KeyDevTokenSecret, KeySignEndpoint, KeySignAccessToken,
	KeyStorageURL, KeyLogLevel,
}

// RegisterFlags adds one flag per setting to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.Bool(KeyUseLocalAPI, false, "call the backend directly over HTTP instead of the container gateway")
	flags.String(KeyAPIBaseURL, "", "backend root URL used in local mode")
	flags.String(KeyCloudEnv, "", "cloud environment id used in cloud mode")
	flags.String(KeyCloudService, "", "container service name used in cloud mode")
	flags.String(KeyEnvironment, "", "environment name echoed to the backend")
	flags.String(KeyAssetBase, "", "asset bucket id used to build image references")
	flags.String(KeyAssetPrefix, "", "directory of game assets inside the bucket")
	flags.String(KeyGatewayAddr, "", "container gateway gRPC address")
	flags.Bool(KeyGatewayInsecure, false, "connect to the container gateway without TLS")
	flags.String(KeyOpenID, "", "host identity forwarded in cloud mode")
	flags.String(KeyDevOpenID, "", "identity asserted by a signed dev token in local mode")
	flags.String(KeyDevTokenSecret, "", "HMAC secret for dev tokens")
	flags.String(KeySignEndpoint, "", "temp-file signing endpoint for image URLs")
	flags.String(KeySignAccessToken, "", "access token for the signing endpoint")
	flags.String(KeyStorageURL, "", "session storage URL (sqlite://path or postgres://...)")
	flags.String(KeyLogLevel, "", "log level (debug, info, warn, error)")
}

// Load reads .env files, then resolves every setting from flags and the
// environment. Missing .env files are ignored; the default is ./.env.
func Load(flags *pflag.FlagSet, envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{defaultEnvFile}
	}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for _, key := range allKeys {
		envName := envNameFor(key)
		names := []string{key, envName}
		if hostPrefixed[key] {
			names = append(names, hostEnvPrefix+envName)
		}
		if err := v.BindEnv(names...); err != nil {
			return Config{}, err
		}
		if flags != nil {
			if flag := flags.Lookup(key); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return Config{}, err
				}
			}
		}
	}

	cfg := Config{
		UseLocalAPI:     v.GetBool(KeyUseLocalAPI),
		APIBaseURL:      strings.TrimSpace(v.GetString(KeyAPIBaseURL)),
		CloudEnv:        strings.TrimSpace(v.GetString(KeyCloudEnv)),
		CloudService:    strings.TrimSpace(v.GetString(KeyCloudService)),
		Environment:     strings.TrimSpace(v.GetString(KeyEnvironment)),
		AssetBase:       strings.TrimSpace(v.GetString(KeyAssetBase)),
		AssetPrefix:     strings.TrimSpace(v.GetString(KeyAssetPrefix)),
		GatewayAddr:     strings.TrimSpace(v.GetString(KeyGatewayAddr)),
		GatewayInsecure: v.GetBool(KeyGatewayInsecure),
		OpenID:          strings.TrimSpace(v.GetString(KeyOpenID)),
		DevOpenID:       strings.TrimSpace(v.GetString(KeyDevOpenID)),
		DevTokenSecret:  v.GetString(KeyDevTokenSecret),
		SignEndpoint:    strings.TrimSpace(v.GetString(KeySignEndpoint)),
		SignAccessToken: strings.TrimSpace(v.GetString(KeySignAccessToken)),
		StorageURL:      strings.TrimSpace(v.GetString(KeyStorageURL)),
		LogLevel:        strings.TrimSpace(v.GetString(KeyLogLevel)),
	}
	return cfg, cfg.Validate()
}

// Validate fills defaults and checks the settings the selected mode needs.
func (cfg *Config) Validate() error {
	cfg.Environment = defaultIfEmpty(cfg.Environment, defaultEnvironment)
	cfg.AssetPrefix = defaultIfEmpty(cfg.AssetPrefix, imageref.DefaultAssetPrefix)
	cfg.LogLevel = strings.ToLower(defaultIfEmpty(cfg.LogLevel, defaultLogLevel))
	if strings.TrimSpace(cfg.StorageURL) == "" {
		storageURL, err := defaultStorageURL()
		if err != nil {
			return err
		}
		cfg.StorageURL = storageURL
	}
	if _, err := zap.ParseAtomicLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, cfg.LogLevel)
	}
	if cfg.UseLocalAPI {
		parsed, err := url.Parse(cfg.APIBaseURL)
		if cfg.APIBaseURL == "" || err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%w: %s must be an absolute url in local mode", ErrInvalidConfig, KeyAPIBaseURL)
		}
	} else if cfg.GatewayAddr == "" {
		return fmt.Errorf("%w: %s is required in cloud mode", ErrInvalidConfig, KeyGatewayAddr)
	}
	if cfg.DevOpenID != "" && cfg.DevTokenSecret == "" {
		return fmt.Errorf("%w: %s requires %s", ErrInvalidConfig, KeyDevOpenID, KeyDevTokenSecret)
	}
	return nil
}

// Transport returns the transport selector settings.
func (cfg Config) Transport(logger *zap.Logger) transport.Config {
	return transport.Config{
		UseLocalAPI:     cfg.UseLocalAPI,
		Environment:     cfg.Environment,
		BaseURL:         cfg.APIBaseURL,
		DevOpenID:       cfg.DevOpenID,
		DevSecret:       cfg.DevTokenSecret,
		GatewayAddr:     cfg.GatewayAddr,
		GatewayInsecure: cfg.GatewayInsecure,
		CloudEnv:        cfg.CloudEnv,
		CloudService:    cfg.CloudService,
		OpenID:          cfg.OpenID,
		Logger:          logger,
	}
}

// Images returns the image resolver settings.
func (cfg Config) Images() imageref.Config {
	return imageref.Config{AssetBase: cfg.AssetBase, AssetPrefix: cfg.AssetPrefix}
}

// Signer returns the signing settings, or false when no endpoint is set.
func (cfg Config) Signer() (imageref.HTTPSignerConfig, bool) {
	if cfg.SignEndpoint == "" {
		return imageref.HTTPSignerConfig{}, false
	}
	return imageref.HTTPSignerConfig{
		Endpoint:    cfg.SignEndpoint,
		AccessToken: cfg.SignAccessToken,
		Env:         cfg.CloudEnv,
	}, true
}

func envNameFor(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

func defaultStorageURL() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: resolve home directory: %v", ErrInvalidConfig, err)
	}
	return "sqlite://" + filepath.Join(home, defaultStorageDir, defaultStorageFile), nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
