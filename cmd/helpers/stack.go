package helpers

import (
	"fmt"
	"io"
	"os"

	"github.com/hubfold/tokend/config"
	"github.com/hubfold/tokend/events"
	"github.com/hubfold/tokend/logger"
	"github.com/hubfold/tokend/storage"
	"github.com/hubfold/tokend/token"
)

// Stack is the assembled token subsystem: storage, provider, manager
// and the coordinators on top. CLI commands and the server build one
// from the same config file so both operate on the same data.
type Stack struct {
	Config      *config.Config
	TokenConfig *token.Config
	Logger      logger.Logger
	Backend     storage.Backend
	Store       *token.Store
	Provider    *token.Provider
	Manager     *token.Manager
	Invalidator *token.Invalidator
	RemoteWipe  *token.RemoteWipe
	Bus         *events.Bus
}

// BuildStack assembles the token subsystem from a config file. The log
// parameter overrides the config's log settings; pass nil to build a
// logger from the config.
func BuildStack(configPath string, log logger.Logger) (*Stack, error) {
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return BuildStackFromConfig(conf, log)
}

// BuildStackFromConfig assembles the token subsystem from an already
// loaded configuration.
func BuildStackFromConfig(conf *config.Config, log logger.Logger) (*Stack, error) {
	if log == nil {
		log = logger.NewZerologLogger(&logger.Config{
			Level:   logger.ParseLogLevel(conf.LogLevel),
			Format:  logger.ParseOutputFormat(conf.LogFormat),
			Outputs: []io.Writer{os.Stderr},
		})
	}

	if conf.Storage == nil {
		return nil, fmt.Errorf("a storage backend must be specified")
	}
	storageConf, err := ResolveFileRefs(conf.Storage.Config())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage config: %w", err)
	}
	backend, err := storage.NewBackend(storageConf, log.WithSubsystem("storage."+conf.Storage.Type))
	if err != nil {
		return nil, fmt.Errorf("failed to construct the storage: %w", err)
	}

	tokenConf, err := conf.Tokens.TokenConfig()
	if err != nil {
		return nil, err
	}

	store := token.NewStore(backend, log.WithSubsystem("store"))
	provider, err := token.NewProvider(tokenConf, store, token.SystemClock(), log.WithSubsystem("provider"))
	if err != nil {
		return nil, err
	}

	bus := events.NewBus(log.WithSubsystem("events"))

	return &Stack{
		Config:      conf,
		TokenConfig: tokenConf,
		Logger:      log,
		Backend:     backend,
		Store:       store,
		Provider:    provider,
		Manager:     token.NewManager(provider, log.WithSubsystem("manager")),
		Invalidator: token.NewInvalidator(provider, bus, log.WithSubsystem("invalidator")),
		RemoteWipe:  token.NewRemoteWipe(provider, bus, log.WithSubsystem("wipe")),
		Bus:         bus,
	}, nil
}

// Close releases the stack's resources
func (s *Stack) Close() error {
	s.Provider.Close()
	return s.Backend.Close()
}
