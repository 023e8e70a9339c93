package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/MarkoPoloResearchLab/srquick/internal/config"
	"github.com/MarkoPoloResearchLab/srquick/internal/logging"
	"github.com/MarkoPoloResearchLab/srquick/internal/presenter"
	"github.com/MarkoPoloResearchLab/srquick/internal/store"
	"github.com/MarkoPoloResearchLab/srquick/pkg/charsync"
	"github.com/MarkoPoloResearchLab/srquick/pkg/imageref"
	"github.com/MarkoPoloResearchLab/srquick/pkg/session"
	"github.com/MarkoPoloResearchLab/srquick/pkg/srquick"
	"github.com/MarkoPoloResearchLab/srquick/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds what a single command invocation needs. Storage-backed stores
// are opened on first use so stateless commands never touch the database.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	sender    transport.Sender
	client    *srquick.Client
	presenter *presenter.Presenter
	out       io.Writer
	registry  *prometheus.Registry
	metrics   string

	storage  *store.Handle
	sessions *session.Store
	roster   *charsync.Store
}

func registerFlags(cmd *cobra.Command) {
	config.RegisterFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().StringSlice(flagEnvFile, []string{defaultEnvFile}, ".env files to load before reading the environment")
	cmd.PersistentFlags().String(flagMetricsOut, "", "write client request metrics in text format to this file on exit")
}

func (application *app) open(cmd *cobra.Command) error {
	envFiles, err := cmd.Flags().GetStringSlice(flagEnvFile)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cmd.Flags(), envFiles...)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	metricsOut, err := cmd.Flags().GetString(flagMetricsOut)
	if err != nil {
		return err
	}
	sender, err := transport.Select(cfg.Transport(logger))
	if err != nil {
		return err
	}
	registry := prometheus.NewRegistry()
	client, err := srquick.NewClient(sender,
		srquick.WithLogger(logger),
		srquick.WithOperationLogger(logging.NewOperationLogger(logger)),
		srquick.WithMetrics(registry),
	)
	if err != nil {
		return err
	}
	application.cfg = cfg
	application.logger = logger
	application.sender = sender
	application.client = client
	application.registry = registry
	application.metrics = metricsOut
	application.presenter = presenter.New(presenter.NewWriterNotifier(cmd.ErrOrStderr()))
	application.out = cmd.OutOrStdout()
	return nil
}

func (application *app) close() error {
	var closeErrors []error
	if application.storage != nil {
		closeErrors = append(closeErrors, application.storage.Close())
	}
	if closer, ok := application.sender.(io.Closer); ok {
		closeErrors = append(closeErrors, closer.Close())
	}
	if application.metrics != "" && application.registry != nil {
		if err := prometheus.WriteToTextfile(application.metrics, application.registry); err != nil {
			closeErrors = append(closeErrors, fmt.Errorf("write metrics: %w", err))
		}
	}
	if application.logger != nil {
		_ = application.logger.Sync()
	}
	return errors.Join(closeErrors...)
}

// session returns the hydrated session store with its login status checked.
func (application *app) session(ctx context.Context) (*session.Store, error) {
	if application.sessions != nil {
		return application.sessions, nil
	}
	handle, err := store.Open(ctx, application.cfg.StorageURL)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	application.storage = handle
	sessions, err := session.New(ctx, application.client, handle, session.WithLogger(application.logger))
	if err != nil {
		return nil, err
	}
	sessions.CheckLoginStatus(ctx)
	application.sessions = sessions
	return sessions, nil
}

func (application *app) characters() (*charsync.Store, error) {
	if application.roster != nil {
		return application.roster, nil
	}
	roster, err := charsync.New(application.client, charsync.WithLogger(application.logger))
	if err != nil {
		return nil, err
	}
	application.roster = roster
	return roster, nil
}

func (application *app) resolver() (*imageref.Resolver, error) {
	var signer imageref.Signer
	if signerConfig, ok := application.cfg.Signer(); ok {
		httpSigner, err := imageref.NewHTTPSigner(signerConfig)
		if err != nil {
			return nil, err
		}
		signer = httpSigner
	}
	return imageref.NewResolver(application.cfg.Images(), signer, imageref.WithLogger(application.logger)), nil
}

// report prints value as JSON on stdout, or presents err and returns it.
func (application *app) report(value any, err error) error {
	if err != nil {
		application.presenter.Failure(err)
		return err
	}
	return application.print(value)
}

func (application *app) print(value any) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(application.out, string(encoded))
	return err
}

func parseUID(raw string) (srquick.UID, error) {
	return srquick.NewUID(raw)
}

func parseCharacter(rawUID string, rawCharacterID string) (srquick.UID, srquick.CharacterID, error) {
	uid, err := srquick.NewUID(rawUID)
	if err != nil {
		return srquick.UID{}, srquick.CharacterID{}, err
	}
	characterID, err := srquick.NewCharacterID(rawCharacterID)
	if err != nil {
		return srquick.UID{}, srquick.CharacterID{}, err
	}
	return uid, characterID, nil
}
