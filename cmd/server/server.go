package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	metrics "github.com/hashicorp/go-metrics"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hubfold/tokend/audit"
	"github.com/hubfold/tokend/cmd/helpers"
	"github.com/hubfold/tokend/config"
	tokendhttp "github.com/hubfold/tokend/http"
	"github.com/hubfold/tokend/listener"
	"github.com/hubfold/tokend/listener/api"
	log "github.com/hubfold/tokend/logger"
	"github.com/hubfold/tokend/token"
)

const (
	// Subsystem names for logging
	subsystemCore     = "core"
	subsystemListener = "listener"
)

var (
	configPath string

	ServerCmd = &cobra.Command{
		Use:   "server",
		Short: "This command starts a tokend server that responds to API requests",
		Long: `
Usage: tokend server [options]

  This command starts a tokend server that responds to API requests.
  Start a server with a configuration file:

      $ tokend server --config=/etc/tokend/config.hcl

  For a full list of examples, please see the documentation.
  `,
		RunE: run,
	}

	wg sync.WaitGroup

	cleanupGuard sync.Once
)

func init() {
	ServerCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (e.g., path/to/tokend.hcl)")
}

func run(cmd *cobra.Command, args []string) error {
	// Validate config path is provided
	if configPath == "" {
		return fmt.Errorf("config file path is required. Use -c or --config flag")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", configPath)
	}

	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// construct the logger with gate closed during initialization
	gatedLogger := buildGatedLogger(conf)

	setupMetrics()

	stack, err := helpers.BuildStackFromConfig(conf, gatedLogger.WithSubsystem(subsystemCore))
	if err != nil {
		return err
	}
	defer stack.Close()

	infoKeys := make([]string, 0, 10)
	info := make(map[string]string)
	info["log level"] = conf.LogLevel
	infoKeys = append(infoKeys, "log level")
	info["log file"] = conf.LogFile
	infoKeys = append(infoKeys, "log file")
	info["log format"] = conf.LogFormat
	infoKeys = append(infoKeys, "log format")
	for k, v := range helpers.MaskConfigFields(helpers.SensitiveStorageFields, conf.Storage.Config()) {
		info["storage "+k] = v
		infoKeys = append(infoKeys, "storage "+k)
	}
	info["instance secret"] = helpers.MaskSingleValue("instance_secret", conf.Tokens.InstanceSecret, helpers.SensitiveTokensFields)
	infoKeys = append(infoKeys, "instance secret")
	info["session lifetime"] = stack.TokenConfig.SessionLifetime.String()
	infoKeys = append(infoKeys, "session lifetime")
	info["remember lifetime"] = stack.TokenConfig.RememberLifetime.String()
	infoKeys = append(infoKeys, "remember lifetime")
	info["activity debounce"] = stack.TokenConfig.ActivityDebounce.String()
	infoKeys = append(infoKeys, "activity debounce")

	// Audit trail of token lifecycle operations
	auditManager, err := buildAudit(conf, gatedLogger)
	if err != nil {
		return err
	}
	if auditManager != nil {
		defer auditManager.Close()
		info["audit file"] = conf.Audit.Path
		infoKeys = append(infoKeys, "audit file")
	}

	// Create the HTTP handler over the token subsystem
	httpHandler := tokendhttp.Handler(&tokendhttp.HandlerProperties{
		Manager:     stack.Manager,
		Invalidator: stack.Invalidator,
		RemoteWipe:  stack.RemoteWipe,
		Audit:       auditManager,
		Logger:      gatedLogger,
	})

	// init the listeners
	lns, err := initListeners(httpHandler, conf, gatedLogger, &infoKeys, info)
	if err != nil {
		return err
	}

	// Shutdown error tracking
	var shutdownErrs []error
	var shutdownErrsMu sync.Mutex

	// Make sure we close all listeners from this point on
	listenerCloseFunc := func() {
		fmt.Fprintf(cmd.OutOrStdout(), "Stopping all listeners\n")
		for _, ln := range lns {
			if err := ln.Stop(); err != nil {
				shutdownErrsMu.Lock()
				shutdownErrs = append(shutdownErrs, fmt.Errorf("failed to stop %s listener at %s: %w", ln.Type(), ln.Addr(), err))
				shutdownErrsMu.Unlock()
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Listener stopped successfully: type=%s, address=%s\n", ln.Type(), ln.Addr())
			}
		}
	}

	// Use sync.Once to ensure listeners are stopped exactly once, even if
	// called both via defer (on panic/error) and explicitly on shutdown
	defer cleanupGuard.Do(listenerCloseFunc)

	sort.Strings(infoKeys)
	fmt.Fprintf(cmd.OutOrStdout(), "\n==> Tokend server configuration:\n\n")

	titleCaser := cases.Title(language.English, cases.NoLower)

	for _, k := range infoKeys {
		fmt.Fprintf(cmd.OutOrStdout(), "%24s: %s\n", titleCaser.String(k), info[k])
	}

	// Use context from cobra command which respects signal interrupts
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Background retention sweeps
	sweepInterval, err := conf.Tokens.SweepIntervalDuration()
	if err != nil {
		return err
	}
	janitor := token.NewJanitor(stack.Provider, sweepInterval, gatedLogger.WithSubsystem("janitor"))
	janitor.Start(ctx)
	defer janitor.Stop()

	// Channel to collect all listener errors
	errChan := make(chan error, len(lns))
	var listenerErrs []error
	var listenerErrsMu sync.Mutex
	totalListeners := len(lns)

	for _, ln := range lns {
		ln := ln
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ln.Start(ctx); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "failed to start listener: %v\n", err)
				errChan <- err
			}
		}()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n==> Tokend server started! Log data will stream in below:\n")
	gatedLogger.OpenGate()

	// Wait for shutdown
	shutdownTriggered := false

	for !shutdownTriggered {
		select {
		case err := <-errChan:
			// Aggregate listener errors
			listenerErrsMu.Lock()
			listenerErrs = append(listenerErrs, err)
			failedCount := len(listenerErrs)
			listenerErrsMu.Unlock()

			fmt.Fprintf(cmd.OutOrStdout(), "Listener error occurred: failed_count=%d, total_listeners=%d\n", failedCount, totalListeners)

			// Only trigger shutdown if ALL listeners have failed
			if failedCount >= totalListeners {
				fmt.Fprintf(cmd.OutOrStdout(), "All listeners have failed, triggering shutdown: failed_count=%d\n", failedCount)
				shutdownTriggered = true
				cancel()
			}
		case <-ctx.Done():
			fmt.Fprintf(cmd.OutOrStdout(), "Tokend shutdown triggered\n")
			shutdownTriggered = true
			cancel()
		}
	}

	// Stop the listeners so that we don't process further client requests
	cleanupGuard.Do(listenerCloseFunc)

	// Wait for all listener goroutines to finish and collect any remaining errors
	wg.Wait()

	close(errChan)
	for err := range errChan {
		listenerErrsMu.Lock()
		listenerErrs = append(listenerErrs, err)
		listenerErrsMu.Unlock()
	}

	if len(listenerErrs) > 0 {
		aggregatedErr := errors.Join(listenerErrs...)
		fmt.Fprintf(cmd.OutOrStdout(), "Listener errors occurred during runtime: %v, error_count=%d\n", aggregatedErr, len(listenerErrs))
	}

	if len(shutdownErrs) > 0 {
		aggregatedShutdownErr := errors.Join(shutdownErrs...)
		fmt.Fprintf(cmd.OutOrStdout(), "Shutdown completed with errors: %v, error_count=%d\n", aggregatedShutdownErr, len(shutdownErrs))
		return aggregatedShutdownErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Server shutdown completed successfully\n")
	return nil
}

func buildGatedLogger(conf *config.Config) *log.GatedLogger {
	logConfig := &log.Config{
		Level: log.ParseLogLevel(conf.LogLevel),
		FileConfig: &log.FileConfig{
			Filename:   conf.LogFile,
			MaxSize:    conf.LogRotateMegabytes,
			MaxAge:     conf.LogRotationPeriod,
			MaxBackups: conf.LogRotateMaxFiles,
		},
		Format:  log.ParseOutputFormat(conf.LogFormat),
		Outputs: []io.Writer{os.Stdout},
	}

	gateConfig := log.GatedWriterConfig{
		Underlying:    os.Stdout,
		InitialState:  log.GateClosed,
		MaxBufferSize: 10 * 1024 * 1024, // 10MB buffer for initialization logs
	}

	gatedLogger, _ := log.NewGatedLogger(logConfig, gateConfig)

	return gatedLogger
}

// buildAudit assembles the audit manager with a file device when the
// config enables one. Token ids are HMAC-salted with the instance
// secret before they hit the trail.
func buildAudit(conf *config.Config, logger *log.GatedLogger) (audit.Manager, error) {
	if conf.Audit == nil {
		return nil, nil
	}

	sink, err := audit.NewFileSink(audit.FileSinkConfig{
		Path:       conf.Audit.Path,
		MaxSizeMB:  conf.Audit.MaxSizeMB,
		MaxAgeDays: conf.Audit.MaxAgeDays,
		MaxBackups: conf.Audit.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create audit sink: %w", err)
	}

	device, err := audit.NewDevice(audit.DeviceConfig{
		Name: "file",
		Sink: sink,
		Salt: audit.NewHMACer(conf.Tokens.InstanceSecret).SaltFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create audit device: %w", err)
	}

	manager := audit.NewManager(logger.WithSubsystem("audit"))
	if err := manager.RegisterDevice("file", device); err != nil {
		return nil, err
	}
	return manager, nil
}

// setupMetrics wires the process-global metrics sink the token
// provider emits its counters to.
func setupMetrics() {
	inmem := metrics.NewInmemSink(10*time.Second, time.Minute)
	metrics.DefaultInmemSignal(inmem)

	conf := metrics.DefaultConfig("tokend")
	conf.EnableHostname = false
	metrics.NewGlobal(conf, inmem)
}

func initListeners(httpHandler http.Handler, conf *config.Config, logger *log.GatedLogger, infoKeys *[]string, info map[string]string) ([]listener.Listener, error) {
	lns := make([]listener.Listener, 0, len(conf.Listeners))

	for _, lnConfig := range conf.Listeners {
		switch lnConfig.Protocol {
		case "http", "tcp":
			// construct api listener using shared HTTP handler
			ln, err := api.NewApiListener(api.ApiListenerConfig{
				Logger:          logger,
				Address:         lnConfig.Address,
				TLSCertFile:     lnConfig.TLSCertFile,
				TLSKeyFile:      lnConfig.TLSKeyFile,
				TLSClientCAFile: lnConfig.TLSClientCAFile,
				TLSEnabled:      lnConfig.TLSEnabled,
			}, httpHandler)
			if err != nil {
				return nil, fmt.Errorf("error initializing listener %s: %w", lnConfig.Name, err)
			}
			lns = append(lns, ln)

			*infoKeys = append(*infoKeys, "listener "+lnConfig.Name)
			info["listener "+lnConfig.Name] = lnConfig.Address
		default:
			return nil, fmt.Errorf("unknown listener protocol: %s", lnConfig.Protocol)
		}
	}

	return lns, nil
}
