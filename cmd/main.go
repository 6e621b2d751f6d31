package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Riboost-Studio/label-print-agent/internal/delivery"
	"github.com/Riboost-Studio/label-print-agent/internal/device"
	"github.com/Riboost-Studio/label-print-agent/internal/metrics"
	"github.com/Riboost-Studio/label-print-agent/internal/model"
	"github.com/Riboost-Studio/label-print-agent/internal/services"
	"github.com/Riboost-Studio/label-print-agent/internal/templates"
	"github.com/Riboost-Studio/label-print-agent/internal/utils"
)

const (
	appVersion       = "1.0.0"
	defaultConfig    = "config/config.yaml"
	handshakeTimeout = 10 * time.Second
	pdfTimeout       = 30 * time.Second
)

var configFile string

// --- Main ---

func main() {
	root := &cobra.Command{
		Use:           "print-agent",
		Short:         "Label print agent: thermal labels over USB and summaries on the default printer",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", defaultConfig, "config file path")

	root.AddCommand(buildRunCommand())
	root.AddCommand(buildDevicesCommand())
	root.AddCommand(buildDoctorCommand())
	root.AddCommand(buildRenderCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the server and process print jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := utils.LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := utils.NewLogger(os.Stderr, cfg.Logging)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAgent(ctx, cfg, logger)
		},
	}
}

func runAgent(ctx context.Context, cfg model.Config, logger *slog.Logger) error {
	logger.Info("starting print agent", "version", appVersion, "printer", cfg.Printer.ID, "server", cfg.Server.URL)

	// 1. Thermal printer
	bus := device.NewUSBBus(cfg.Device.WriteTimeout)
	defer bus.Close()
	session := device.NewSession(device.NewChannel(bus, logger), cfg.Device.VendorID, cfg.Device.ProductID, cfg.Device.AutoDetect, logger)
	if err := session.Open(); err != nil {
		logger.Warn("thermal printer not connected, retrying on first job", "err", err)
	} else {
		logger.Info("thermal printer connected", "device", session.Describe())
	}
	defer session.Close()

	// 2. Document delivery
	cleaner := delivery.NewCleaner(cfg.Delivery.CleanupDelay, logger)
	defer cleaner.Flush()
	mechanisms, viewer := delivery.Platform(runtime.GOOS, delivery.ExecRunner{})
	docs := delivery.New(delivery.Options{
		Mechanisms: mechanisms,
		Viewer:     viewer,
		PDF:        pdfRenderer(cfg.Delivery, logger),
		TmpDir:     cfg.Delivery.TempDir,
		Logger:     logger,
	})
	logger.Info("document delivery ready", "mechanisms", docs.MechanismNames())

	// 3. Dispatcher and server connection
	collector := metrics.NewCollector()
	var supervisor *services.Supervisor
	dispatcher := services.NewDispatcher(services.DispatcherOptions{
		Registry:  templates.NewRegistry(),
		Device:    session,
		Documents: docs,
		Reporter: services.ReportFunc(func(jobID string, res model.PrintResult) {
			supervisor.Report(jobID, res)
		}),
		Cleaner: cleaner,
		Metrics: collector,
		Logger:  logger,
		Policy:  cfg.Dispatch,
	})
	supervisor = services.NewSupervisor(services.SupervisorOptions{
		Transport: &services.WSTransport{
			URL:              cfg.Server.URL,
			APIKey:           cfg.Server.APIKey,
			HandshakeTimeout: handshakeTimeout,
		},
		Jobs:                dispatcher,
		Commands:            dispatcher,
		Device:              session,
		Printer:             cfg.Printer,
		SessionID:           uuid.NewString(),
		RegistrationTimeout: cfg.Server.RegistrationTimeout,
		PingInterval:        cfg.Server.PingInterval,
		PongWait:            cfg.Server.PongWait,
		Reconnect:           utils.Backoff{Initial: cfg.Server.ReconnectInitial, Max: cfg.Server.ReconnectMax},
		RegistrationRetry:   utils.Backoff{Initial: cfg.Server.RegistrationRetryInitial, Max: cfg.Server.RegistrationRetryMax},
		Metrics:             collector,
		Logger:              logger,
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = dispatcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = supervisor.Run(ctx)
	}()

	if cfg.Status.Addr != "" {
		status := &services.StatusServer{
			Addr:       cfg.Status.Addr,
			PrinterID:  cfg.Printer.ID,
			Supervisor: supervisor,
			Dispatcher: dispatcher,
			Device:     session,
			Metrics:    collector.Handler(),
			Logger:     logger,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := status.Run(ctx); err != nil {
				logger.Error("status server stopped", "err", err)
			}
		}()
	}

	logger.Info("system running", "printer", cfg.Printer.Name)
	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
	return nil
}

// pdfRenderer prefers headless Chrome and falls back to gofpdf drawing.
// It returns nil when PDF output is disabled.
func pdfRenderer(cfg model.DeliveryConfig, logger *slog.Logger) delivery.PDFRenderer {
	if cfg.DisablePDF {
		return nil
	}
	path := cfg.ChromePath
	if path == "" {
		found, p := utils.CheckChrome()
		if !found {
			logger.Warn("chrome not found, drawing summaries with the basic pdf renderer", "hint", utils.ChromeInstallHint(runtime.GOOS))
			return delivery.BasicPDF{}
		}
		path = p
	}
	return delivery.PDFChain{
		delivery.ChromeRenderer{ExecPath: path, Timeout: pdfTimeout},
		delivery.BasicPDF{},
	}
}
