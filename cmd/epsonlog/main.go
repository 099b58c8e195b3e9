package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	epsoncan "github.com/openimu/epsoncan"
	"github.com/openimu/epsoncan/pkg/can"
	_ "github.com/openimu/epsoncan/pkg/can/socketcan"
	_ "github.com/openimu/epsoncan/pkg/can/socketcanv2"
	_ "github.com/openimu/epsoncan/pkg/can/virtual"
	"github.com/openimu/epsoncan/pkg/config"
	"github.com/openimu/epsoncan/pkg/profile"
	"github.com/openimu/epsoncan/pkg/session"
)

var DEFAULT_CAN_INTERFACE = "socketcan"
var DEFAULT_CHANNEL = "can0"

// consoleWriter prints one CSV-ish row per sample, matching the column
// order of the bench logging scripts.
type consoleWriter struct {
	inertial bool
}

func (writer *consoleWriter) Write(sample *epsoncan.Sample) error {
	if writer.inertial {
		fmt.Printf("%d, %.6f, %.6f, %.6f, %.6f, %.6f, %.6f, %d, %s, %.4f\n",
			sample.Index,
			sample.Angular[0], sample.Angular[1], sample.Angular[2],
			sample.Accel[0], sample.Accel[1], sample.Accel[2],
			sample.Counter, sample.Device.Format("15:04:05.000"), sample.Temperature)
		return nil
	}
	fmt.Printf("%d, %.6f, %.6f, %.6f, %d, %s, %.4f\n",
		sample.Index,
		sample.Accel[0], sample.Accel[1], sample.Accel[2],
		sample.Counter, sample.Device.Format("15:04:05.000"), sample.Temperature)
	return nil
}

func main() {
	can_interface := flag.String("i", DEFAULT_CAN_INTERFACE, "bus backend e.g. socketcan,socketcanv2,virtual")
	channel := flag.String("c", DEFAULT_CHANNEL, "channel e.g. can0,vcan0")
	node_id := flag.Int("n", 1, "sensor node id")
	node_count := flag.Int("N", 1, "number of nodes on the bus")
	rate := flag.Float64("r", 1000, "output rate in Hz (event-driven mode)")
	sync_hz := flag.Float64("s", 0, "SYNC rate in Hz; selects SYNC-driven mode")
	filter := flag.String("f", "", "filter name; auto-selected from rate when empty")
	tempc := flag.Bool("t", false, "enable the temperature PDO")
	max_samples := flag.Uint64("m", 0, "stop after this many samples (0 = run until interrupted)")
	save_config := flag.Bool("save", false, "persist settings to non-volatile storage")
	new_bitrate := flag.Int("b", 0, "rewrite bus bit rate (takes effect on next power cycle)")
	new_node_id := flag.Int("id", 0, "rewrite sensor node id (takes effect on next power cycle)")
	models_ini := flag.String("p", "", "extra device models INI file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *models_ini != "" {
		if err := profile.LoadINI(*models_ini); err != nil {
			log.Fatalf("loading models: %v", err)
		}
	}

	bus, err := can.NewBus(*can_interface, *channel)
	if err != nil {
		log.Fatalf("opening bus: %v", err)
	}
	sess, err := session.NewSession(bus, uint8(*node_id), uint8(*node_count))
	if err != nil {
		log.Fatalf("creating session: %v", err)
	}
	defer sess.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := session.Options{
		Options: config.Options{
			SyncRateHz:   *sync_hz,
			OutputRateHz: *rate,
			Filter:       *filter,
			Temperature:  *tempc,
			NewNodeId:    uint8(*new_node_id),
			NewBitrate:   *new_bitrate,
			SaveConfig:   *save_config,
		},
		MaxSamples: *max_samples,
	}

	result, err := sess.Configure(ctx, opts)
	if err != nil {
		sess.Shutdown()
		log.Fatalf("configuration: %v", err)
	}

	writer := &consoleWriter{inertial: result.Profile.HasGyro()}
	if err := sess.Run(ctx, writer, opts); err != nil {
		sess.Shutdown()
		log.Fatalf("streaming: %v", err)
	}
}
