// Package session ties the transport, configuration sequencer, SYNC
// producer and PDO assembler into one acquisition run against a single
// sensor node.
package session

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	log "github.com/sirupsen/logrus"

	epsoncan "github.com/openimu/epsoncan"
	"github.com/openimu/epsoncan/pkg/can"
	"github.com/openimu/epsoncan/pkg/config"
	"github.com/openimu/epsoncan/pkg/heartbeat"
	"github.com/openimu/epsoncan/pkg/nmt"
	"github.com/openimu/epsoncan/pkg/pdo"
	epsonsync "github.com/openimu/epsoncan/pkg/sync"
)

// Options extends the configuration options with streaming policy.
type Options struct {
	config.Options

	// MaxSamples stops the run after that many samples; zero streams
	// until the context is cancelled.
	MaxSamples uint64

	// AutoResetNode re-issues NMT Reset-Node whenever the primary
	// node's heartbeat shows up mid-stream. A heartbeat during
	// streaming means the device rebooted. Off by default, the
	// heartbeat stays advisory telemetry.
	AutoResetNode bool

	// ResetHold is how long to pause after an automatic reset.
	ResetHold time.Duration
}

// Session owns the transport for its lifetime. Configure must run
// before Run; Shutdown is safe to call from any point, including after
// a failed Configure.
type Session struct {
	transport *epsoncan.Transport
	ids       *epsoncan.COBIDSet
	sequencer *config.Sequencer
	producer  *epsonsync.Producer
	nmt       *nmt.Controller
	monitor   *heartbeat.Monitor

	assembler *pdo.Assembler
	result    *config.Result

	shutdownOnce stdsync.Once
	shutdownErr  error
}

// NewSession derives the identifier set for the node and attaches a
// transport to the bus. The caller picks the backend via can.NewBus.
func NewSession(bus can.Bus, nodeId uint8, nodeCount uint8) (*Session, error) {
	ids, err := epsoncan.DeriveCOBIDs(nodeId, nodeCount)
	if err != nil {
		return nil, err
	}
	transport, err := epsoncan.NewTransport(bus)
	if err != nil {
		return nil, err
	}
	return &Session{
		transport: transport,
		ids:       ids,
		sequencer: config.NewSequencer(transport, ids),
		producer:  epsonsync.NewProducer(transport, ids),
		nmt:       nmt.NewController(transport, ids),
		monitor:   heartbeat.NewMonitor(ids),
	}, nil
}

// Transport exposes the underlying transport, mainly for tests and
// ad-hoc SDO access.
func (session *Session) Transport() *epsoncan.Transport {
	return session.transport
}

// SetSDOTimeout adjusts the sequencer's SDO response deadline.
func (session *Session) SetSDOTimeout(timeout time.Duration) {
	session.sequencer.SetSDOTimeout(timeout)
}

// Configure runs the setup sequence and readies the assembler. The
// node is operational on success.
func (session *Session) Configure(ctx context.Context, opts Options) (*config.Result, error) {
	result, err := session.sequencer.Run(ctx, opts.Options)
	if err != nil {
		return nil, err
	}
	session.result = result
	session.assembler = pdo.NewAssembler(session.ids, result.Profile, result.TargetMask, session.monitor)
	return result, nil
}

// Run streams samples to the writer until MaxSamples is reached or the
// context is cancelled. Cancellation is a graceful stop, not an error.
// The caller still owns Shutdown on every exit path.
func (session *Session) Run(ctx context.Context, writer epsoncan.SampleWriter, opts Options) error {
	if session.assembler == nil {
		return errors.New("session is not configured")
	}
	if opts.SyncRateHz > 0 {
		if err := session.producer.Start(opts.SyncRateHz); err != nil {
			return err
		}
		log.Infof("[SESSION] SYNC producer running at %v Hz", opts.SyncRateHz)
	}

	var count uint64
	for {
		frame, err := session.transport.ReceiveNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Infof("[SESSION] cancelled after %d samples", count)
				return nil
			}
			return err
		}
		if sample := session.assembler.Process(frame); sample != nil {
			if err := writer.Write(sample); err != nil {
				return err
			}
			count++
			if opts.MaxSamples > 0 && count >= opts.MaxSamples {
				log.Infof("[SESSION] reached %d samples", count)
				return nil
			}
		}
		if session.monitor.ResetDetected() {
			log.Warnf("[SESSION] device reset detected mid-stream")
			if opts.AutoResetNode {
				if err := session.nmt.Broadcast(nmt.CommandResetNode); err != nil {
					return err
				}
				if opts.ResetHold > 0 {
					select {
					case <-time.After(opts.ResetHold):
					case <-ctx.Done():
						return nil
					}
				}
			}
		}
	}
}

// Shutdown places the node pre-operational, stops the SYNC producer
// and closes the transport. Idempotent.
func (session *Session) Shutdown() error {
	session.shutdownOnce.Do(func() {
		log.Infof("[SESSION] shutting down")
		if err := session.nmt.Broadcast(nmt.CommandEnterPreOperational); err != nil {
			log.Warnf("[SESSION] pre-operational on shutdown: %v", err)
		}
		session.producer.Stop()
		session.shutdownErr = session.transport.Close()
	})
	return session.shutdownErr
}
