// Package sdo implements the expedited SDO client used to read and
// write single configuration objects on the sensor. One request frame
// goes out on the TSDO identifier and the client blocks until the
// matching response appears on the RSDO identifier.
package sdo

import (
	"context"
	"encoding/binary"
	"errors"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/jpillora/maplock"
	log "github.com/sirupsen/logrus"

	epsoncan "github.com/openimu/epsoncan"
)

// Command specifiers for the expedited transfer subset the sensor
// implements. The write specifier encodes the payload width.
const (
	CommandRead   uint8 = 0x40
	CommandWrite1 uint8 = 0x2F
	CommandWrite2 uint8 = 0x2B
	CommandWrite4 uint8 = 0x23
)

const (
	DefaultTimeout  = 500 * time.Millisecond
	DefaultAttempts = 3
	retryDelay      = 1 * time.Millisecond
)

// One lock per client-to-server identifier : two transactions to the
// same node must never interleave on the shared frame stream.
var transactions = maplock.New()

// Response is the decoded 8-byte answer observed on the RSDO identifier.
type Response struct {
	Command  uint8
	Index    uint16
	Subindex uint8
	Value    uint32
}

type Client struct {
	transport *epsoncan.Transport
	ids       *epsoncan.COBIDSet
	timeout   time.Duration
	attempts  uint
}

func NewClient(transport *epsoncan.Transport, ids *epsoncan.COBIDSet) *Client {
	return &Client{
		transport: transport,
		ids:       ids,
		timeout:   DefaultTimeout,
		attempts:  DefaultAttempts,
	}
}

// SetTimeout changes the per attempt response wait.
func (client *Client) SetTimeout(timeout time.Duration) {
	client.timeout = timeout
}

// Write sends an expedited download of width 1, 2 or 4 bytes and
// returns the value echoed by the device.
func (client *Client) Write(ctx context.Context, index uint16, subindex uint8, width uint8, value uint32) (uint32, error) {
	var command uint8
	switch width {
	case 1:
		command = CommandWrite1
	case 2:
		command = CommandWrite2
	case 4:
		command = CommandWrite4
	default:
		return 0, epsoncan.ErrUnsupportedWidth
	}
	response, err := client.transact(ctx, command, index, subindex, value)
	if err != nil {
		return 0, err
	}
	log.Debugf("[SDO] write x%x|x%x value x%x echoed x%x", index, subindex, value, response.Value)
	return response.Value, nil
}

// Read sends an expedited upload request and returns the raw 32-bit
// response value. The request always uses the 4-byte layout, the caller
// masks down to the object's true width.
func (client *Client) Read(ctx context.Context, index uint16, subindex uint8) (uint32, error) {
	response, err := client.transact(ctx, CommandRead, index, subindex, 0)
	if err != nil {
		return 0, err
	}
	log.Debugf("[SDO] read x%x|x%x value x%x", index, subindex, response.Value)
	return response.Value, nil
}

func (client *Client) transact(ctx context.Context, command uint8, index uint16, subindex uint8, value uint32) (Response, error) {
	// Do not allow concurrent transactions towards the same node
	key := strconv.Itoa(int(client.ids.TSDO))
	transactions.Lock(key)
	defer transactions.Unlock(key)

	request := encodeRequest(client.ids.TSDO, command, index, subindex, value)
	var response Response
	err := retry.Do(
		func() error {
			if err := client.transport.Send(request); err != nil {
				return err
			}
			decoded, err := client.waitResponse(ctx, index, subindex)
			if err != nil {
				return err
			}
			response = decoded
			return nil
		},
		retry.Attempts(client.attempts),
		retry.Delay(retryDelay),
		retry.LastErrorOnly(true),
	)
	return response, err
}

// waitResponse drains the frame stream until a response on the RSDO
// identifier echoes the requested object, or the per attempt timeout
// expires. Unrelated traffic (heartbeats, stray PDOs) is discarded,
// which is acceptable only because transactions run strictly during the
// pre-operational configuration phase.
func (client *Client) waitResponse(ctx context.Context, index uint16, subindex uint8) (Response, error) {
	waitCtx, cancel := context.WithTimeout(ctx, client.timeout)
	defer cancel()
	for {
		frame, err := client.transport.ReceiveNext(waitCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return Response{}, epsoncan.ErrSDOTimeout
			}
			return Response{}, err
		}
		if frame.ID != client.ids.RSDO {
			log.Debugf("[SDO] skipping unrelated frame x%x during transaction", frame.ID)
			continue
		}
		response := decodeResponse(frame)
		if response.Index != index || response.Subindex != subindex {
			// Stale answer from an earlier exchange, not ours yet
			log.Debugf("[SDO] response for x%x|x%x while waiting for x%x|x%x, still waiting",
				response.Index, response.Subindex, index, subindex)
			continue
		}
		return response, nil
	}
}

func encodeRequest(cobId uint32, command uint8, index uint16, subindex uint8, value uint32) epsoncan.Frame {
	frame := epsoncan.NewFrame(cobId, 0, 8)
	frame.Data[0] = command
	binary.LittleEndian.PutUint16(frame.Data[1:3], index)
	frame.Data[3] = subindex
	binary.LittleEndian.PutUint32(frame.Data[4:8], value)
	return frame
}

func decodeResponse(frame epsoncan.Frame) Response {
	return Response{
		Command:  frame.Data[0],
		Index:    binary.LittleEndian.Uint16(frame.Data[1:3]),
		Subindex: frame.Data[3],
		Value:    binary.LittleEndian.Uint32(frame.Data[4:8]),
	}
}
