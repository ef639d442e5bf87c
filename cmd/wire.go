package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/lockpad/internal/adapters/cloud"
	"github.com/bnema/lockpad/internal/adapters/radio/mdns"
	statusadapter "github.com/bnema/lockpad/internal/adapters/render/status"
	tomlrepo "github.com/bnema/lockpad/internal/adapters/repo/toml"
	chainstore "github.com/bnema/lockpad/internal/adapters/secrets/chain"
	"github.com/bnema/lockpad/internal/application"
	"github.com/bnema/lockpad/internal/infra/config"
	"github.com/bnema/lockpad/internal/infra/logger"
	"github.com/bnema/lockpad/internal/ports"
)

// configFileEnv points at an explicit config file instead of ~/.lockpad/config.toml.
const configFileEnv = "LOCKPAD_CONFIG"

type app struct {
	cfg            config.Config
	logger         *slog.Logger
	closeLogger    func() error
	provisioning   *application.ProvisioningService
	lockNotifier   ports.LockNotifier
	advertiser     ports.Advertiser
	statusRenderer func(application.Status, statusadapter.RenderOptions) (string, error)
	httpClient     *http.Client
	now            func() time.Time
}

func wireApp() (*app, error) {
	v := viper.New()
	if path := os.Getenv(configFileEnv); path != "" {
		v.SetConfigFile(path)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	repo, err := tomlrepo.NewRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire device repository: %w", err)
	}

	secretStore, err := chainstore.ForBackend(cfg.Secrets.Backend, cfg.Secrets.Path)
	if err != nil {
		return nil, fmt.Errorf("wire secret store: %w", err)
	}

	api := cloud.API{
		BaseURL:   cfg.Cloud.BaseURL,
		TokenPath: cfg.Cloud.TokenPath,
		LockPath:  cfg.Cloud.LockPath,
	}
	httpClient := http.DefaultClient

	tokens := cloud.TokenClient{
		API:            api,
		HTTPClient:     httpClient,
		RequestTimeout: cfg.Cloud.RequestTimeout,
	}
	locks := cloud.NewBreakerLockNotifier(cloud.LockClient{
		API:            api,
		HTTPClient:     httpClient,
		RequestTimeout: cfg.Cloud.LockTimeout,
		Logger:         log,
	}, cloud.BreakerConfig{
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
		Interval:    cfg.Breaker.Interval,
	}, log)

	return &app{
		cfg:            cfg,
		logger:         log,
		closeLogger:    closeLog,
		provisioning:   application.NewProvisioningService(repo, secretStore, tokens, log),
		lockNotifier:   locks,
		advertiser:     mdns.NewAdvertiser(log),
		statusRenderer: statusadapter.Render,
		httpClient:     httpClient,
		now:            time.Now,
	}, nil
}
