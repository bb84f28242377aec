// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/wellgate/internal/acquisition"
	"github.com/Thermoquad/wellgate/internal/config"
	"github.com/Thermoquad/wellgate/internal/field"
	"github.com/Thermoquad/wellgate/internal/host"
	"github.com/Thermoquad/wellgate/internal/record"
	"github.com/Thermoquad/wellgate/internal/storage"
	"github.com/Thermoquad/wellgate/internal/transport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	runTUI   bool
	runCheck bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the field gateway",
	Long: `Start the gateway described by the configuration file (--config).

The gateway configures the local radio, then sweeps every configured site in
order: oil wells, water wells, valve groups and the manifold pressure carrier.
Completed sweeps are published to the host-facing Modbus TCP server and, when
storage is enabled, written to the SQLite history.

Use --tui for a live monitor of per-site poll health and radio statistics.
The connection flags are ignored; the radio is taken from the config file.`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show the live gateway monitor")
	runCmd.Flags().BoolVar(&runCheck, "check", false, "Validate the configuration and exit")
}

// gateway holds the running components of the daemon
type gateway struct {
	cfg     *config.Config
	logger  *slog.Logger
	port    transport.Port
	radio   *field.RadioExchanger
	bus     *field.BusExchanger
	buffer  *record.DoubleBuffer
	sink    *storage.Sink
	machine *acquisition.Machine
	server  *host.Server
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)
	return cfg, nil
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if runCheck {
		fmt.Printf("Configuration OK: %d sites\n", len(cfg.Sites))
		return nil
	}

	// With the monitor on screen, log lines go to its event pane
	var events *eventWriter
	var logOut io.Writer = os.Stderr
	if runTUI {
		events = newEventWriter(200)
		logOut = events
	}
	logger := newLogger(cfg.Log, logOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := startGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer gw.close()

	errc := make(chan error, 1)
	go func() { errc <- gw.machine.Run(ctx) }()

	if runTUI {
		p := tea.NewProgram(newMonitorModel(gw, events), tea.WithAltScreen())
		go func() {
			<-ctx.Done()
			p.Quit()
		}()
		if _, err := p.Run(); err != nil {
			log.Printf("Monitor error: %v", err)
		}
		stop()
	}

	err = <-errc
	if errors.Is(err, context.Canceled) {
		logger.Info("gateway stopped")
		return nil
	}
	return err
}

// startGateway opens the field channels and starts every component except the
// acquisition loop
func startGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gateway, error) {
	gw := &gateway{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			gw.close()
		}
	}()

	r := cfg.Radio
	opts := transport.Options{
		PortName:      r.Port,
		BaudRate:      r.BaudRate,
		URL:           r.BridgeURL,
		Username:      r.BridgeUsername,
		SkipSSLVerify: r.BridgeSkipVerify,
	}
	if r.BridgeURL != "" && r.BridgeUsername != "" {
		password, err := transport.GetPassword()
		if err != nil {
			return nil, fmt.Errorf("failed to get password: %w", err)
		}
		opts.Password = password
	}

	port, info, err := transport.Open(opts)
	if err != nil {
		return nil, err
	}
	gw.port = port
	logger.Info("radio connected", "transport", info)

	if !r.SkipHandshake {
		hs := transport.HandshakeConfig{
			PanID:          r.PanID,
			Coordinator:    r.Coordinator,
			APIMode:        r.APIMode,
			DisableAck:     r.DisableAck,
			GuardTime:      r.GuardTime,
			CommandTimeout: r.CommandTimeout,
		}
		if err := transport.Handshake(ctx, port, hs, logger); err != nil {
			return nil, err
		}
	}

	gw.radio = field.NewRadioExchanger(port, r.APIMode == 2, r.ResponseTimeout, logger.With("channel", "radio"))
	radioCh := field.Channel{Exchanger: gw.radio, Arbiter: field.NewArbiter()}

	var busCh *field.Channel
	if cfg.Gateway.ValveWiring == config.WiringBus && hasClass(cfg.Sites, config.ClassValveGroup) {
		b := cfg.Bus
		bus, err := field.OpenBus(field.BusOptions{
			Port:     b.Port,
			BaudRate: b.BaudRate,
			DataBits: b.DataBits,
			StopBits: b.StopBits,
			Parity:   b.Parity,
			Timeout:  b.Timeout,
		}, logger.With("channel", "bus"))
		if err != nil {
			return nil, err
		}
		gw.bus = bus
		busCh = &field.Channel{Exchanger: bus, Arbiter: field.NewArbiter()}
	}

	book := field.NewAddressBook()
	classes := make(map[uint8]string, len(cfg.Sites))
	for _, s := range cfg.Sites {
		book.Set(s.ID, s.RadioAddress())
		classes[s.ID] = s.Class
	}
	gw.buffer = record.NewDoubleBuffer(classes)

	var sink acquisition.Sink
	if cfg.Storage.Enabled {
		st := cfg.Storage
		gw.sink, err = storage.Open(storage.Options{
			Path:          st.Path,
			Retention:     st.Retention,
			PruneInterval: st.PruneInterval,
			QueueSize:     st.QueueSize,
		}, logger.With("component", "storage"))
		if err != nil {
			return nil, err
		}
		sink = gw.sink
	}

	gw.machine, err = acquisition.New(acquisition.Options{
		Sites:         cfg.Sites,
		Manifold:      cfg.Manifold,
		ValveWiring:   cfg.Gateway.ValveWiring,
		Attempts:      cfg.Gateway.Attempts,
		SweepInterval: cfg.Gateway.SweepInterval,
		Radio:         radioCh,
		Bus:           busCh,
		Remote:        gw.radio,
		Address:       book,
		Buffer:        gw.buffer,
		Sink:          sink,
		Logger:        logger.With("component", "acquisition"),
	})
	if err != nil {
		return nil, err
	}

	dispatcher := host.NewDispatcher(host.Options{
		Sites:       cfg.Sites,
		ValveWiring: cfg.Gateway.ValveWiring,
		Attempts:    cfg.Gateway.Attempts,
		Radio:       radioCh,
		Bus:         busCh,
		Address:     book,
		Buffer:      gw.buffer,
		Logger:      logger.With("component", "host"),
	})
	gw.server = host.NewServer(dispatcher, cfg.Host.IdleTimeout, logger.With("component", "host"))
	if err := gw.server.Listen(cfg.Host.Listen); err != nil {
		gw.server = nil
		return nil, fmt.Errorf("host listen %s: %w", cfg.Host.Listen, err)
	}

	ok = true
	return gw, nil
}

// close stops the components in reverse start order
func (gw *gateway) close() {
	if gw.server != nil {
		gw.server.Close()
	}
	if gw.sink != nil {
		if err := gw.sink.Close(); err != nil {
			gw.logger.Error("storage close failed", "err", err)
		}
	}
	if gw.bus != nil {
		gw.bus.Close()
	}
	if gw.port != nil {
		gw.port.Close()
	}
}

func hasClass(sites []config.Site, class string) bool {
	for _, s := range sites {
		if s.Class == class {
			return true
		}
	}
	return false
}
