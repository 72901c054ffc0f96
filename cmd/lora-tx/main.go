package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dougsko/lorahat/pkg/config"
	"github.com/dougsko/lorahat/pkg/engine"
	"github.com/dougsko/lorahat/pkg/logging"
	"github.com/dougsko/lorahat/pkg/radio"
	"github.com/dougsko/lorahat/pkg/station"
	"github.com/dougsko/lorahat/pkg/storage"
	"github.com/dougsko/lorahat/pkg/telemetry"
)

var (
	configPath = flag.String("config", "", "Configuration file path (defaults only when empty)")
	version    = flag.Bool("version", false, "Show version information")

	serialDev = flag.String("serial", "/dev/serial0", "Serial device of the HAT")
	baudRate  = flag.Int("baud", 9600, "Serial baud rate")
	freq      = flag.Int("freq", 915, "Frequency in MHz (850-930 or 410-493)")
	addr      = flag.Int("addr", 101, "Own address (0-65535)")
	dest      = flag.Int("dest", 0xFFFF, "Destination address (65535 broadcasts)")
	lines     = flag.String("lines", "auto", "M0/M1 control: auto, gpio or fixed")

	mode      = flag.String("mode", "sensors", "Payload: sensors, random or text")
	period    = flag.Duration("period", time.Second, "Time between frames")
	count     = flag.Int("count", 0, "Frames to send (0 runs until interrupted)")
	stationID = flag.String("station", "tx01", "Station id carried in sensor records")
	rain      = flag.Bool("rain", false, "Include the rain block (with -seismic selects only those)")
	seismic   = flag.Bool("seismic", false, "Include the seismic block")
	bucket    = flag.Float64("bucket", 0.2, "Rain gauge bucket size in mm")
	seed      = flag.Int64("seed", 0, "Simulator seed (0 seeds from the clock)")

	dbPath   = flag.String("db", "", "Record sent frames to this SQLite database")
	logLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

const Version = "0.1.0-dev"

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *version {
		fmt.Printf("lora-tx version %s\n", Version)
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

	builder, err := telemetry.NewBuilder(telemetry.Options{
		Mode:     cfg.Telemetry.Mode,
		Station:  cfg.Station.ID,
		Period:   cfg.Telemetry.Period,
		Rain:     cfg.Telemetry.Rain,
		Seismic:  cfg.Telemetry.Seismic,
		BucketMM: cfg.Telemetry.BucketMM,
		Seed:     cfg.Telemetry.Seed,
	})
	if err != nil {
		logging.Errorf("main", "Invalid telemetry settings: %v", err)
		return 1
	}

	var sink storage.Sink
	if cfg.Storage.DatabasePath != "" {
		store, err := storage.NewFrameStore(cfg.Storage.DatabasePath, cfg.Storage.MaxFrames)
		if err != nil {
			logging.Errorf("main", "Failed to open frame store: %v", err)
			return 1
		}
		defer store.Close()
		sink = store
	}

	tx := engine.NewTransmitter(engine.TransmitterConfig{
		Destination: radio.Address(cfg.Radio.Destination),
		Source:      radio.Address(cfg.Radio.Address),
		Channel:     st.Channel,
		BaseMHz:     st.Base,
		Period:      cfg.Telemetry.Period,
		Count:       *count,
		Lines:       st.Lines.String(),
	}, st.Link, builder, sink)

	logging.Infof("main", "lora-tx %s | %s | air=%dbps", Version, st, cfg.Radio.AirSpeed)

	if err := tx.Run(ctx); err != nil {
		logging.Errorf("main", "Transmitter stopped: %v", err)
		return 1
	}

	logging.Infof("main", "lora-tx stopped after %d frames", tx.Status().Frames)
	return 0
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
		case "dest":
			cfg.Radio.Destination = *dest
		case "lines":
			cfg.Lines.Control = *lines
		case "mode":
			cfg.Telemetry.Mode = *mode
		case "period":
			cfg.Telemetry.Period = *period
		case "station":
			cfg.Station.ID = *stationID
		case "bucket":
			cfg.Telemetry.BucketMM = *bucket
		case "seed":
			cfg.Telemetry.Seed = *seed
		case "db":
			cfg.Storage.DatabasePath = *dbPath
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})

	// block flags select exactly what was asked for
	if *rain || *seismic {
		cfg.Telemetry.Rain = *rain
		cfg.Telemetry.Seismic = *seismic
	}
}
