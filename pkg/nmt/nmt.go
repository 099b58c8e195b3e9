// Package nmt sends the network management commands that move the
// sensor through its lifecycle. NMT is fire and forget : no response is
// awaited.
package nmt

import (
	log "github.com/sirupsen/logrus"

	epsoncan "github.com/openimu/epsoncan"
)

// Available NMT commands.
// They can be broadcasted to all nodes or sent to individual nodes.
type Command uint8

const (
	CommandEnterOperational    Command = 0x01
	CommandEnterStopped        Command = 0x02
	CommandEnterPreOperational Command = 0x80
	CommandResetNode           Command = 0x81
	CommandResetCommunication  Command = 0x82
)

var CommandDescription = map[Command]string{
	CommandEnterOperational:    "ENTER-OPERATIONAL",
	CommandEnterStopped:        "ENTER-STOPPED",
	CommandEnterPreOperational: "ENTER-PREOPERATIONAL",
	CommandResetNode:           "RESET-NODE",
	CommandResetCommunication:  "RESET-COMMUNICATION",
}

// Node states reported in heartbeat frames.
const (
	StateInitializing   uint8 = 0
	StateStopped        uint8 = 4
	StateOperational    uint8 = 5
	StatePreOperational uint8 = 127
)

type Controller struct {
	transport *epsoncan.Transport
	ids       *epsoncan.COBIDSet
}

func NewController(transport *epsoncan.Transport, ids *epsoncan.COBIDSet) *Controller {
	return &Controller{transport: transport, ids: ids}
}

// Send emits the fixed 2-byte command frame [command, node].
// Node id 0 addresses every node on the bus.
func (controller *Controller) Send(command Command, nodeId uint8) error {
	frame := epsoncan.NewFrame(controller.ids.NMT, 0, 2)
	frame.Data[0] = uint8(command)
	frame.Data[1] = nodeId
	log.Infof("[NMT] sending %v to node x%x", CommandDescription[command], nodeId)
	return controller.transport.Send(frame)
}

// Broadcast sends a command to all nodes.
func (controller *Controller) Broadcast(command Command) error {
	return controller.Send(command, 0)
}
