package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dougsko/lorahat/pkg/config"
	"github.com/dougsko/lorahat/pkg/engine"
	"github.com/dougsko/lorahat/pkg/logging"
	"github.com/dougsko/lorahat/pkg/radio"
	"github.com/dougsko/lorahat/pkg/station"
	"github.com/dougsko/lorahat/pkg/storage"
	"github.com/dougsko/lorahat/pkg/web"
)

var (
	configPath = flag.String("config", "", "Configuration file path (defaults only when empty)")
	version    = flag.Bool("version", false, "Show version information")

	serialDev = flag.String("serial", "/dev/serial0", "Serial device of the HAT")
	baudRate  = flag.Int("baud", 9600, "Serial baud rate")
	freq      = flag.Int("freq", 915, "Frequency in MHz (850-930 or 410-493)")
	addr      = flag.Int("addr", 0, "Own address (0-65535)")
	lines     = flag.String("lines", "auto", "M0/M1 control: auto, gpio or fixed")
	rssi      = flag.Bool("rssi", true, "Frames carry a trailing RSSI byte")

	pollInterval = flag.Duration("poll", 50*time.Millisecond, "Serial poll interval")
	settleDelay  = flag.Duration("settle", 500*time.Millisecond, "Wait after the first bytes of a frame")
	debug        = flag.Bool("debug", false, "Log every raw frame as hex")

	csvPath  = flag.String("csv", "", "Append received frames to this CSV file")
	dbPath   = flag.String("db", "", "Record received frames to this SQLite database")
	webOn    = flag.Bool("web", false, "Serve the status API and live websocket feed")
	webPort  = flag.Int("web-port", 8080, "Web server port")
	logLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

const Version = "0.1.0-dev"

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *version {
		fmt.Printf("lora-rx version %s\n", Version)
		return 0
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	if err := logging.InitGlobalLogger(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		return 1
	}
	defer logging.CloseGlobalLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := station.Open(cfg, nil)
	if err != nil {
		logging.Errorf("main", "Failed to open HAT: %v", err)
		return 1
	}
	defer st.Close()

	if !st.Lines.IsControlled() {
		logging.Info("main", radio.JumperAdvice(cfg.Radio.Serial, false))
	}

	var sinks storage.MultiSink
	if cfg.Receiver.CSV != "" {
		csvSink, err := storage.NewCSVSink(cfg.Receiver.CSV)
		if err != nil {
			logging.Errorf("main", "Failed to open CSV: %v", err)
			return 1
		}
		sinks = append(sinks, csvSink)
		logging.Infof("main", "Logging frames to %s", csvSink.Path())
	}

	var store *storage.FrameStore
	if cfg.Storage.DatabasePath != "" {
		store, err = storage.NewFrameStore(cfg.Storage.DatabasePath, cfg.Storage.MaxFrames)
		if err != nil {
			sinks.Close()
			logging.Errorf("main", "Failed to open frame store: %v", err)
			return 1
		}
		sinks = append(sinks, store)
	}

	var hub *web.Hub
	if cfg.Web.Enabled {
		hub = web.NewHub()
		sinks = append(sinks, hub)
	}
	defer sinks.Close()

	rx := engine.NewReceiver(engine.ReceiverConfig{
		RSSI:         cfg.RSSIEnabled(),
		BaseMHz:      st.Base,
		Channel:      st.Channel,
		PollInterval: cfg.Receiver.PollInterval,
		SettleDelay:  cfg.Receiver.SettleDelay,
		Debug:        cfg.Receiver.Debug,
		Lines:        st.Lines.String(),
	}, st.Link, sinks)

	logging.Infof("main", "lora-rx %s | %s | addr=%d | air=%dbps", Version, st, cfg.Radio.Address, cfg.Radio.AirSpeed)

	var wg sync.WaitGroup
	if hub != nil {
		web.Version = Version
		server := web.NewServer(fmt.Sprintf("%s:%d", cfg.Web.BindAddress, cfg.Web.Port), rx, store, hub)

		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Run(ctx)
		}()
		go func() {
			defer wg.Done()
			if err := server.Run(ctx); err != nil {
				logging.Errorf("main", "Web server: %v", err)
			}
		}()
	}

	code := 0
	if err := rx.Run(ctx); err != nil {
		logging.Errorf("main", "Receiver stopped: %v", err)
		code = 1
	}
	stop()
	wg.Wait()

	status := rx.Status()
	logging.Infof("main", "lora-rx stopped: %d frames, %d discarded", status.Frames, status.Discarded)
	return code
}

// applyFlags overrides the loaded configuration with flags given on the
// command line.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "serial":
			cfg.Radio.Serial = *serialDev
		case "baud":
			cfg.Radio.BaudRate = *baudRate
		case "freq":
			cfg.Radio.Frequency = *freq
		case "addr":
			cfg.Radio.Address = *addr
		case "lines":
			cfg.Lines.Control = *lines
		case "rssi":
			cfg.SetRSSI(*rssi)
		case "poll":
			cfg.Receiver.PollInterval = *pollInterval
		case "settle":
			cfg.Receiver.SettleDelay = *settleDelay
		case "debug":
			cfg.Receiver.Debug = *debug
		case "csv":
			cfg.Receiver.CSV = *csvPath
		case "db":
			cfg.Storage.DatabasePath = *dbPath
		case "web":
			cfg.Web.Enabled = *webOn
		case "web-port":
			cfg.Web.Port = *webPort
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})
}
