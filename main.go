// ABOUTME: Entry point for the MicTroll application
// ABOUTME: Parses CLI flags and runs the control panel or headless mode with optional remote control
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/mictroll/mictroll-go/internal/app"
	"github.com/mictroll/mictroll-go/internal/config"
	"github.com/mictroll/mictroll-go/internal/observe"
	"github.com/mictroll/mictroll-go/internal/remote"
	"github.com/mictroll/mictroll-go/internal/ui"
	"github.com/mictroll/mictroll-go/internal/version"
	"github.com/mictroll/mictroll-go/pkg/audio"
	"github.com/mictroll/mictroll-go/pkg/audio/device"
	"github.com/mictroll/mictroll-go/pkg/audio/device/mock"
	"github.com/mictroll/mictroll-go/pkg/audio/monitor"
	"github.com/mictroll/mictroll-go/pkg/audio/source"
	"github.com/mictroll/mictroll-go/pkg/session"
)

var (
	configPath = flag.String("config", "", "YAML config file (flags given explicitly override it)")
	backend    = flag.String("backend", device.BackendMalgo, "Audio backend: malgo, portaudio or mock")
	sinkMatch  = flag.String("sink", device.DefaultSinkMatch, "Name fragment of the output device to route into")
	sampleRate = flag.Int("sample-rate", audio.DefaultSampleRate, "Sample rate in Hz")
	frameSize  = flag.Int("frame-size", audio.DefaultFrameSize, "Samples per processing frame")
	background = flag.String("background", "", "Looping background bed (MP3 or FLAC file or URL)")
	monitorOut = flag.Bool("monitor", false, "Also play the processed signal on the default output")
	remoteOn   = flag.Bool("remote", false, "Serve the WebSocket remote control")
	listen     = flag.String("listen", ":8927", "Remote control listen address")
	name       = flag.String("name", "", "Instance name for mDNS (default: hostname-mictroll)")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	logFile    = flag.String("log-file", "mictroll.log", "Log file path")
	headless   = flag.Bool("headless", false, "Disable the control panel and start a session immediately")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	// No control panel without a terminal
	useTUI := !*headless && term.IsTerminal(int(os.Stdout.Fd()))

	// Set up logging
	f, err := os.OpenFile(cfg.Log.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Headless mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s %s (backend: %s, format: %s)",
		version.Product, version.Version, cfg.Audio.Backend, cfg.Format())

	if err := run(cfg, useTUI); err != nil {
		log.Printf("Exiting with error: %v", err)
		if useTUI {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		os.Exit(1)
	}

	log.Printf("Stopped")
}

func run(cfg *config.Config, useTUI bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version.Version})
	if err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Metrics shutdown error: %v", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	format := cfg.Format()

	backend, err := newBackend(cfg.Audio.Backend, format)
	if err != nil {
		return err
	}

	ctrlConfig := app.Config{
		Format:    format,
		SinkMatch: cfg.Audio.SinkMatch,
		Backend:   backend,
		Metrics:   metrics,
		OnDeviceNotFound: func(installURL string) {
			log.Printf("No output device matches %q; install the virtual cable from %s", cfg.Audio.SinkMatch, installURL)
		},
		OnStateChange: func(state session.State) {
			log.Printf("Session state: %s", state)
		},
	}

	if cfg.Background.File != "" {
		bed, err := source.Load(cfg.Background.File, format.SampleRate)
		if err != nil {
			backend.Close()
			return fmt.Errorf("failed to load background: %w", err)
		}
		log.Printf("Background bed: %s (%d samples)", bed.Name(), bed.Len())
		ctrlConfig.Bed = bed
	}

	if cfg.Audio.Monitor {
		mon, err := monitor.New(format)
		if err != nil {
			log.Printf("Monitor disabled: %v", err)
		} else {
			ctrlConfig.Monitor = mon
		}
	}

	ctrl, err := app.NewController(ctrlConfig)
	if err != nil {
		backend.Close()
		return fmt.Errorf("failed to create controller: %w", err)
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Printf("Error closing controller: %v", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Remote.Enabled {
		srv, err := remote.New(remote.Config{
			Addr:       cfg.Remote.Listen,
			Name:       cfg.Remote.Name,
			EnableMDNS: cfg.Remote.MDNS,
			Controller: ctrl,
			Metrics:    metrics,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	if useTUI {
		g.Go(func() error {
			// quitting the panel ends the process
			defer stop()
			return ui.Run(gctx, ctrl, func() {
				metrics.RecordParamUpdate(gctx, "tui")
			})
		})
	} else {
		if err := ctrl.Start(); err != nil {
			log.Printf("Session failed to start: %v", err)
		}
		g.Go(func() error {
			statusLoop(gctx, ctrl)
			return nil
		})
	}

	return g.Wait()
}

// statusLoop logs session counters until ctx is done
func statusLoop(ctx context.Context, ctrl *app.Controller) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Shutdown signal received")
			return
		case <-ticker.C:
			st := ctrl.Status()
			if !st.State.Active() {
				continue
			}
			log.Printf("Session %s: frames=%d muted=%d distorted=%d faults=%d/%d",
				st.SessionID, st.Stats.Frames, st.Stats.Muted, st.Stats.Distorted,
				st.Stats.ReadFaults, st.Stats.WriteFaults)
		}
	}
}

func newBackend(name string, format audio.Format) (device.Backend, error) {
	if name == "mock" {
		period := time.Duration(format.FramePeriodMs() * float64(time.Millisecond))
		return mock.NewBackend(mock.Config{Frequency: 440, Amplitude: 0.3, Period: period}), nil
	}
	b, err := device.New(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", name, err)
	}
	return b, nil
}

// loadConfig reads -config when given, then applies explicitly set flags
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Audio.Backend = *backend
		case "sink":
			cfg.Audio.SinkMatch = *sinkMatch
		case "sample-rate":
			cfg.Audio.SampleRate = *sampleRate
		case "frame-size":
			cfg.Audio.FrameSize = *frameSize
		case "background":
			cfg.Background.File = *background
		case "monitor":
			cfg.Audio.Monitor = *monitorOut
		case "remote":
			cfg.Remote.Enabled = *remoteOn
		case "listen":
			cfg.Remote.Listen = *listen
		case "name":
			cfg.Remote.Name = *name
		case "no-mdns":
			cfg.Remote.MDNS = !*noMDNS
		case "log-file":
			cfg.Log.File = *logFile
		}
	})

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
