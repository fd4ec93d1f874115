package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/webconf/internal/application"
	"github.com/eugenenazirov/webconf/internal/config"
	"github.com/eugenenazirov/webconf/internal/environment"
	"github.com/eugenenazirov/webconf/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("webconf", "Web host driven by a one-shot configuration resolver")
	configFile := kingpinApp.Flag("config", "Path to the configuration file (properties, YAML or TOML)").Default("app.properties").String()
	envPrefix := kingpinApp.Flag("env-prefix", "Overlay environment variables with this prefix onto the configuration file").String()
	webRoot := kingpinApp.Flag("web-root", "Directory static folders and views are resolved against").Default(".").String()
	devLog := kingpinApp.Flag("dev-log", "Human-readable console logging").Bool()
	logLevel := kingpinApp.Flag("log-level", "Minimum log level").Default("info").Enum("debug", "info", "warn", "error")

	serveCmd := kingpinApp.Command("serve", "Resolve the configuration and start the HTTP server").Default()
	port := serveCmd.Flag("port", "HTTP port, overrides server.port").Default("0").Int()
	rateLimitRPSFlag := serveCmd.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := serveCmd.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	settingsCmd := kingpinApp.Command("settings", "Resolve the configuration and print the settings as YAML")

	command := kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	logger, err := logging.New(logging.WithDevelopment(*devLog), logging.WithLevel(*logLevel))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	settings := config.NewSettings()
	settings.SetWebRoot(*webRoot)
	opener := config.EnvironmentOpener()
	if *envPrefix != "" {
		opener = config.EnvironmentOpener(environment.WithEnvPrefix(*envPrefix))
	}

	switch command {
	case settingsCmd.FullCommand():
		resolver := config.NewResolver(settings, config.WithOpener(opener), config.WithLogger(logger))
		result := resolver.Load(*configFile)
		if err := printSettings(os.Stdout, settings.Snapshot(), result); err != nil {
			logger.Fatal("failed to print settings", zap.Error(err))
		}

	case serveCmd.FullCommand():
		overrides := &config.CLIOverrides{}
		if *port > 0 {
			overrides.Port = port
		}
		if *rateLimitRPSFlag >= 0 {
			overrides.RateLimitRPS = rateLimitRPSFlag
		}
		if *rateLimitBurstFlag >= 0 {
			overrides.RateLimitBurst = rateLimitBurstFlag
		}

		opts, err := config.LoadServerOptions(overrides)
		if err != nil {
			logger.Fatal("failed to load server options", zap.Error(err))
		}

		app, err := application.New(*configFile, opts, settings, logger, config.WithOpener(opener))
		if err != nil {
			logger.Fatal("failed to initialize application", zap.Error(err))
		}

		if err := app.Start(); err != nil {
			logger.Fatal("failed to start server", zap.Error(err))
		}

		shutdown(app.Server(), opts.ShutdownGracePeriod, logger)
	}
}

type settingsReport struct {
	Source   string          `yaml:"source"`
	Status   string          `yaml:"status"`
	Port     *int            `yaml:"port,omitempty"`
	Issues   []string        `yaml:"issues,omitempty"`
	Settings config.Snapshot `yaml:"settings"`
}

func printSettings(w io.Writer, snap config.Snapshot, result config.LoadResult) error {
	report := settingsReport{
		Source:   result.Path,
		Status:   result.Status.String(),
		Settings: snap,
	}
	if port, ok := result.Port(); ok {
		report.Port = &port
	}
	for _, issue := range result.Issues() {
		report.Issues = append(report.Issues, issue.Error())
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return enc.Close()
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
