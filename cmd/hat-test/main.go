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
	"github.com/dougsko/lorahat/pkg/hardware"
	"github.com/dougsko/lorahat/pkg/logging"
	"github.com/dougsko/lorahat/pkg/radio"
	"github.com/dougsko/lorahat/pkg/station"
)

var (
	configPath = flag.String("config", "", "Configuration file path (defaults only when empty)")
	serialDev  = flag.String("serial", "", "Serial device (default: first /dev/ttyUSB*, else /dev/serial0)")
	baudRate   = flag.Int("baud", 9600, "Serial baud rate")
	lines      = flag.String("lines", "auto", "M0/M1 control: auto, gpio or fixed")
	useGPIO    = flag.Bool("gpio", false, "Require GPIO control of M0/M1 (same as -lines gpio)")
	noGPIO     = flag.Bool("no-gpio", false, "Never touch GPIO (same as -lines fixed)")

	probe   = flag.Bool("probe", false, "Read the module parameters (C1 00 09) in config mode")
	timeout = flag.Duration("timeout", radio.DefaultProbeTimeout, "How long to wait for the probe response")
	send    = flag.String("send", "", "Send TEXT in normal mode")
	burst   = flag.Int("burst", 1, "Repeat -send this many times")
	gap     = flag.Duration("gap", 50*time.Millisecond, "Pause between burst sends")
)

// settleAfterOpen lets the UART come up before the first write
const settleAfterOpen = 100 * time.Millisecond

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

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

	if !*probe && *send == "" {
		fmt.Println("Nothing to do: use -probe or -send 'TEXT'")
		return 0
	}

	if err := logging.InitGlobalLogger(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		return 1
	}
	defer logging.CloseGlobalLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Opening %s @ %d bps...\n", cfg.Radio.Serial, cfg.Radio.BaudRate)
	st, err := station.Open(cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open HAT: %v\n", err)
		return 1
	}
	defer st.Close()

	for _, advisory := range st.Advisories {
		fmt.Println("Note:", advisory)
	}
	time.Sleep(settleAfterOpen)

	code := 0
	if *probe {
		if c := runProbe(ctx, st); c != 0 {
			code = c
		}
	}
	if *send != "" && ctx.Err() == nil {
		if c := runSend(ctx, st, []byte(*send), *burst); c != 0 {
			code = c
		}
	}
	return code
}

func runProbe(ctx context.Context, st *station.Station) int {
	if !st.Lines.IsControlled() {
		fmt.Println(radio.JumperAdvice(st.Device, true))
	}

	fmt.Println("Probing parameters (0xC1 0x00 0x09)...")
	result, err := radio.ProbeInConfig(ctx, st.Mode, st.Link, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Probe failed: %v\n", err)
		return 1
	}

	if result.Matched {
		fmt.Printf("OK: response %s\n", result.Hex())
		return 0
	}
	fmt.Printf("No valid response (received %s)\n", result.Hex())
	return 2
}

func runSend(ctx context.Context, st *station.Station, payload []byte, count int) int {
	if count < 1 {
		count = 1
	}
	if !st.Lines.IsControlled() {
		fmt.Println(radio.JumperAdvice(st.Device, false))
	}

	fmt.Printf("Sending %d bytes x %d...\n", len(payload), count)
	for i := 0; i < count; i++ {
		if err := st.Link.Send(payload); err != nil {
			fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
			return 1
		}
		if i < count-1 {
			select {
			case <-ctx.Done():
				return 0
			case <-time.After(*gap):
			}
		}
	}
	fmt.Println("Sent. Observe LEDs/analyzer/receiver.")
	return 0
}

// applyFlags overrides the loaded configuration with flags given on the
// command line. Without -serial or a config file the device is detected.
func applyFlags(cfg *config.Config) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	switch {
	case set["serial"]:
		cfg.Radio.Serial = *serialDev
	case *configPath == "":
		cfg.Radio.Serial = hardware.DetectSerialDevice()
	}
	if set["baud"] {
		cfg.Radio.BaudRate = *baudRate
	}
	if set["lines"] {
		cfg.Lines.Control = *lines
	}
	if *useGPIO {
		cfg.Lines.Control = config.ControlGPIO
	}
	if *noGPIO {
		cfg.Lines.Control = config.ControlFixed
	}
}
