package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/muurk/origctl/internal/protocol"
)

// CommandKind identifies an engine command
type CommandKind int

const (
	CommandConnect CommandKind = iota + 1
	CommandDisconnect
	CommandSetAncMode
	CommandSetGameMode
	CommandSetLowLatency
	CommandSetDualConn
	CommandSetEq
	CommandSetWindSuppression
	CommandSetInEarDetection
	CommandRefreshStatus
)

var commandNames = map[CommandKind]string{
	CommandConnect:            "connect",
	CommandDisconnect:         "disconnect",
	CommandSetAncMode:         "anc",
	CommandSetGameMode:        "game",
	CommandSetLowLatency:      "low-latency",
	CommandSetDualConn:        "dual-conn",
	CommandSetEq:              "eq",
	CommandSetWindSuppression: "wind",
	CommandSetInEarDetection:  "in-ear",
	CommandRefreshStatus:      "refresh",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// Command is a request to the engine, as carried over the event bridge
type Command struct {
	Kind         CommandKind      `cbor:"1,keyasint"`
	Address      string           `cbor:"2,keyasint,omitempty"`
	Name         string           `cbor:"3,keyasint,omitempty"`
	AutoGameMode bool             `cbor:"4,keyasint,omitempty"`
	AncMode      protocol.AncMode `cbor:"5,keyasint,omitempty"`
	EqMode       protocol.EqMode  `cbor:"6,keyasint,omitempty"`
	Enabled      bool             `cbor:"7,keyasint,omitempty"`
}

// Dispatch executes cmd. Connect blocks until the dial finishes.
func (e *Engine) Dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CommandConnect:
		return e.Connect(ctx, Device{Address: cmd.Address, Name: cmd.Name}, ConnectOptions{AutoGameMode: cmd.AutoGameMode})
	case CommandDisconnect:
		e.Disconnect()
		return nil
	case CommandSetAncMode:
		return e.SetAncMode(cmd.AncMode)
	case CommandSetGameMode:
		return e.SetGameMode(cmd.Enabled)
	case CommandSetLowLatency:
		return e.SetLowLatency(cmd.Enabled)
	case CommandSetDualConn:
		return e.SetDualConn(cmd.Enabled)
	case CommandSetEq:
		return e.SetEq(cmd.EqMode)
	case CommandSetWindSuppression:
		return e.SetWindSuppression(cmd.Enabled)
	case CommandSetInEarDetection:
		return e.SetInEarDetection(cmd.Enabled)
	case CommandRefreshStatus:
		return e.RefreshStatus()
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCommand, int(cmd.Kind))
	}
}

// ParseSetCommand builds a set command from a feature name and value as typed
// on the command line, e.g. ("anc", "normal") or ("game", "on").
func ParseSetCommand(feature, value string) (Command, error) {
	feature = strings.ToLower(feature)
	value = strings.ToLower(value)

	switch feature {
	case "anc":
		mode, err := protocol.AncModeFromName(value)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandSetAncMode, AncMode: mode}, nil
	case "eq":
		mode, err := protocol.EqModeFromName(value)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandSetEq, EqMode: mode}, nil
	}

	kinds := map[string]CommandKind{
		"game":        CommandSetGameMode,
		"low-latency": CommandSetLowLatency,
		"dual-conn":   CommandSetDualConn,
		"wind":        CommandSetWindSuppression,
		"in-ear":      CommandSetInEarDetection,
	}
	kind, ok := kinds[feature]
	if !ok {
		return Command{}, fmt.Errorf("unknown feature %q", feature)
	}

	on, err := parseSwitch(value)
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: kind, Enabled: on}, nil
}

func parseSwitch(value string) (bool, error) {
	switch value {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid switch value %q (want on or off)", value)
	}
}
