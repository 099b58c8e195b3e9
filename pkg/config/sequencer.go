// Package config drives the sensor through its pre-streaming setup: it
// places the node pre-operational, pushes the host clock, identifies
// the device, programs sampling mode and filter over SDO, computes the
// TPDO completion target mask and finally starts the node.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	epsoncan "github.com/openimu/epsoncan"
	"github.com/openimu/epsoncan/pkg/nmt"
	"github.com/openimu/epsoncan/pkg/profile"
	"github.com/openimu/epsoncan/pkg/sdo"
	"github.com/openimu/epsoncan/pkg/timestamp"
)

// Step names one stage of the configuration sequence, carried inside
// ConfigurationError so callers can tell where setup broke off.
type Step string

const (
	StepPreOperational Step = "pre-operational"
	StepTime           Step = "time push"
	StepIdentity       Step = "identity"
	StepBusParameters  Step = "bus parameters"
	StepSamplingMode   Step = "sampling mode"
	StepFilter         Step = "filter"
	StepTemperature    Step = "temperature pdo"
	StepTargetMask     Step = "target mask"
	StepApply          Step = "apply"
	StepSave           Step = "save"
	StepStart          Step = "start"
)

// ConfigurationError reports which step failed. Configuration never
// degrades gracefully, the device state is unknown after a failure.
type ConfigurationError struct {
	Step Step
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration step %q failed: %v", e.Step, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func failed(step Step, err error) *ConfigurationError {
	return &ConfigurationError{Step: step, Err: err}
}

// Options selects the sampling parameters for one session. The zero
// value of an optional field means "leave the device setting alone".
type Options struct {
	// SyncRateHz > 0 selects SYNC-driven sampling at that host SYNC
	// rate; otherwise the device free-runs at OutputRateHz.
	SyncRateHz   float64
	OutputRateHz float64

	// Filter names a family filter code; empty picks one from the
	// output rate.
	Filter string

	// Temperature enables the temperature TPDO before the target
	// mask is read.
	Temperature bool

	// NewNodeId / NewBitrate rewrite the bus parameters; the device
	// applies them on the next power cycle.
	NewNodeId  uint8
	NewBitrate int

	// SaveConfig persists the applied settings to non-volatile
	// storage.
	SaveConfig bool

	// Settle delays between steps; zero fields get the device
	// datasheet defaults. Tests shorten these.
	PreOpSettle  time.Duration
	TimeSettle   time.Duration
	FilterSettle time.Duration
	ApplySettle  time.Duration
	SaveSettle   time.Duration
	StartSettle  time.Duration
}

const (
	defaultPreOpSettle  = 1 * time.Second
	defaultTimeSettle   = 500 * time.Millisecond
	defaultFilterSettle = 3 * time.Second
	defaultApplySettle  = 1 * time.Second
	defaultSaveSettle   = 3 * time.Second
	defaultStartSettle  = 250 * time.Millisecond
)

func (opts *Options) applyDefaults() {
	if opts.PreOpSettle == 0 {
		opts.PreOpSettle = defaultPreOpSettle
	}
	if opts.TimeSettle == 0 {
		opts.TimeSettle = defaultTimeSettle
	}
	if opts.FilterSettle == 0 {
		opts.FilterSettle = defaultFilterSettle
	}
	if opts.ApplySettle == 0 {
		opts.ApplySettle = defaultApplySettle
	}
	if opts.SaveSettle == 0 {
		opts.SaveSettle = defaultSaveSettle
	}
	if opts.StartSettle == 0 {
		opts.StartSettle = defaultStartSettle
	}
}

// Identity is what the device reports about itself during setup.
type Identity struct {
	ProductCode string
	Version     string
	Serial      string
}

// Result carries everything later stages need from configuration.
type Result struct {
	Profile    *profile.Profile
	Identity   Identity
	TargetMask uint8
	Filter     string
}

// Sequencer owns the SDO client and NMT controller it configures the
// device with. It is single-use per session but safe to rerun.
type Sequencer struct {
	transport *epsoncan.Transport
	ids       *epsoncan.COBIDSet
	client    *sdo.Client
	nmt       *nmt.Controller
}

func NewSequencer(transport *epsoncan.Transport, ids *epsoncan.COBIDSet) *Sequencer {
	return &Sequencer{
		transport: transport,
		ids:       ids,
		client:    sdo.NewClient(transport, ids),
		nmt:       nmt.NewController(transport, ids),
	}
}

// SetSDOTimeout adjusts the per-exchange response deadline.
func (seq *Sequencer) SetSDOTimeout(timeout time.Duration) {
	seq.client.SetTimeout(timeout)
}

// Run executes the full configuration sequence and leaves the node
// operational. On error the node state is unknown and the caller must
// shut the session down.
func (seq *Sequencer) Run(ctx context.Context, opts Options) (*Result, error) {
	opts.applyDefaults()
	result := &Result{}

	log.Infof("[CONFIG] entering pre-operational")
	if err := seq.nmt.Broadcast(nmt.CommandEnterPreOperational); err != nil {
		return nil, failed(StepPreOperational, err)
	}
	if err := settle(ctx, opts.PreOpSettle); err != nil {
		return nil, failed(StepPreOperational, err)
	}

	log.Infof("[CONFIG] pushing host time")
	if err := seq.transport.Send(timestamp.Frame(seq.ids.TIME, time.Now().UTC())); err != nil {
		return nil, failed(StepTime, err)
	}
	if err := settle(ctx, opts.TimeSettle); err != nil {
		return nil, failed(StepTime, err)
	}

	identity, prof, err := seq.readIdentity(ctx)
	if err != nil {
		return nil, failed(StepIdentity, err)
	}
	result.Identity = identity
	result.Profile = prof
	log.Infof("[CONFIG] device %s fw %s serial %s (%v family)",
		identity.ProductCode, identity.Version, identity.Serial, prof.Family)

	if err := seq.writeBusParameters(ctx, prof, opts); err != nil {
		return nil, failed(StepBusParameters, err)
	}

	syncDriven := opts.SyncRateHz > 0
	if err := seq.writeSamplingMode(ctx, opts, syncDriven); err != nil {
		return nil, failed(StepSamplingMode, err)
	}

	filterName, err := seq.writeFilter(ctx, prof, opts, syncDriven)
	if err != nil {
		return nil, failed(StepFilter, err)
	}
	result.Filter = filterName

	if opts.Temperature {
		if err := seq.enableTemperaturePDO(ctx, prof); err != nil {
			return nil, failed(StepTemperature, err)
		}
	}

	mask, err := seq.readTargetMask(ctx)
	if err != nil {
		return nil, failed(StepTargetMask, err)
	}
	result.TargetMask = mask
	log.Infof("[CONFIG] completion target mask x%x", mask)

	if err := seq.applySettings(ctx, opts); err != nil {
		return nil, err
	}

	log.Infof("[CONFIG] starting node")
	if err := seq.nmt.Broadcast(nmt.CommandEnterOperational); err != nil {
		return nil, failed(StepStart, err)
	}
	if err := settle(ctx, opts.StartSettle); err != nil {
		return nil, failed(StepStart, err)
	}
	return result, nil
}

// readIdentity reads product code, firmware version and the gated
// serial number, then resolves the device profile from the product
// code.
func (seq *Sequencer) readIdentity(ctx context.Context) (Identity, *profile.Profile, error) {
	var identity Identity

	low, err := seq.client.Read(ctx, indexDeviceName, 0)
	if err != nil {
		return identity, nil, err
	}
	high, err := seq.client.Read(ctx, indexDeviceNameHigh, 0)
	if err != nil {
		return identity, nil, err
	}
	identity.ProductCode = decodeASCII(low) + decodeASCII(high)

	version, err := seq.client.Read(ctx, indexSoftwareVersion, 0)
	if err != nil {
		return identity, nil, err
	}
	identity.Version = decodeASCII(version)

	serial, err := seq.readSerial(ctx)
	if err != nil {
		return identity, nil, err
	}
	identity.Serial = serial

	prof, err := profile.Resolve(identity.ProductCode)
	if err != nil {
		return identity, nil, err
	}
	return identity, prof, nil
}

// readSerial opens the gate at sub 0x7E, reads the serial words and
// closes the gate again.
func (seq *Sequencer) readSerial(ctx context.Context) (string, error) {
	if _, err := seq.client.Write(ctx, indexSerialNumber, subSerialGate, 1, 1); err != nil {
		return "", err
	}
	var builder strings.Builder
	for sub := uint8(1); sub <= serialSubCount; sub++ {
		word, err := seq.client.Read(ctx, indexSerialNumber, sub)
		if err != nil {
			return "", err
		}
		builder.WriteString(decodeASCII(word))
	}
	if _, err := seq.client.Write(ctx, indexSerialNumber, subSerialGate, 1, 0); err != nil {
		return "", err
	}
	return strings.TrimSpace(builder.String()), nil
}

func (seq *Sequencer) writeBusParameters(ctx context.Context, prof *profile.Profile, opts Options) error {
	if opts.NewNodeId != 0 {
		if opts.NewNodeId > epsoncan.MaxNodeId {
			return epsoncan.ErrInvalidNodeId
		}
		log.Infof("[CONFIG] rewriting CAN id to x%x (takes effect on next power cycle)", opts.NewNodeId)
		if _, err := seq.client.Write(ctx, indexBusParameters, subCANId, 1, uint32(opts.NewNodeId)); err != nil {
			return err
		}
	}
	if opts.NewBitrate != 0 {
		code, err := prof.BitrateCode(opts.NewBitrate)
		if err != nil {
			return err
		}
		log.Infof("[CONFIG] rewriting bit rate to %d (takes effect on next power cycle)", opts.NewBitrate)
		if _, err := seq.client.Write(ctx, indexBusParameters, subBitrate, 1, uint32(code)); err != nil {
			return err
		}
	}
	return nil
}

func (seq *Sequencer) writeSamplingMode(ctx context.Context, opts Options, syncDriven bool) error {
	mode := modeEventDriven
	// In SYNC-driven mode the effective rate is the SYNC producer's,
	// the interval object is held at 1 ms.
	interval := uint32(1)
	if syncDriven {
		mode = modeSyncDriven
		log.Infof("[CONFIG] SYNC-driven sampling at %v Hz", opts.SyncRateHz)
	} else {
		var err error
		interval, err = profile.IntervalForRate(opts.OutputRateHz)
		if err != nil {
			return err
		}
		log.Infof("[CONFIG] event-driven sampling at %v Hz (interval %d ms)", opts.OutputRateHz, interval)
	}
	if _, err := seq.client.Write(ctx, indexTPDO1Comm, subTransmitType, 1, mode); err != nil {
		return err
	}
	_, err := seq.client.Write(ctx, indexSampleInterval, 0, 4, interval)
	return err
}

func (seq *Sequencer) writeFilter(ctx context.Context, prof *profile.Profile, opts Options, syncDriven bool) (string, error) {
	name := opts.Filter
	if name == "" {
		name = prof.AutoFilter(opts.OutputRateHz, syncDriven)
	}
	code, err := prof.FilterCode(name)
	if err != nil {
		return "", err
	}
	log.Infof("[CONFIG] selecting filter %s (x%02x)", name, code)
	if _, err := seq.client.Write(ctx, indexFilterSelect, 1, 1, uint32(code)); err != nil {
		return "", err
	}
	// The filter needs time to recompute its taps before sampling
	// resumes.
	if err := settle(ctx, opts.FilterSettle); err != nil {
		return "", err
	}
	return name, nil
}

// enableTemperaturePDO clears the disable bit of the family's
// temperature TPDO. This runs before the target mask is read so the
// mask reflects the enabled set.
func (seq *Sequencer) enableTemperaturePDO(ctx context.Context, prof *profile.Profile) error {
	index := indexTPDO1Comm + uint16(prof.TemperaturePDO()-1)
	value, err := seq.client.Read(ctx, index, 1)
	if err != nil {
		return err
	}
	_, err = seq.client.Write(ctx, index, 1, 4, value&^pdoDisabledBit)
	return err
}

// readTargetMask collects the enable bit of every TPDO into the
// completion mask the assembler waits for.
func (seq *Sequencer) readTargetMask(ctx context.Context) (uint8, error) {
	var mask uint8
	for x := 0; x < 4; x++ {
		value, err := seq.client.Read(ctx, indexTPDO1Comm+uint16(x), 1)
		if err != nil {
			return 0, err
		}
		if value&pdoDisabledBit == 0 {
			mask |= 1 << x
		}
	}
	return mask, nil
}

func (seq *Sequencer) applySettings(ctx context.Context, opts Options) error {
	log.Infof("[CONFIG] applying settings")
	if _, err := seq.client.Write(ctx, indexApplySettings, 0, 1, 1); err != nil {
		return failed(StepApply, err)
	}
	if err := settle(ctx, opts.ApplySettle); err != nil {
		return failed(StepApply, err)
	}
	if !opts.SaveConfig {
		return nil
	}
	log.Infof("[CONFIG] saving settings to non-volatile storage")
	if _, err := seq.client.Write(ctx, indexStoreParameters, 1, 4, signatureSave); err != nil {
		return failed(StepSave, err)
	}
	if err := settle(ctx, opts.SaveSettle); err != nil {
		return failed(StepSave, err)
	}
	return nil
}

// LoadParameters restores the factory settings from non-volatile
// storage. Not part of the normal sequence.
func (seq *Sequencer) LoadParameters(ctx context.Context) error {
	_, err := seq.client.Write(ctx, indexLoadParameters, 1, 4, signatureLoad)
	return err
}

// settle sleeps between configuration steps, honoring cancellation.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
