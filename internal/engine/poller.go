package engine

import (
	"context"
	"time"

	"github.com/muurk/origctl/internal/logging"
	"github.com/muurk/origctl/internal/protocol"
	"go.uber.org/zap"
)

// QuerySequence is the order in which a status refresh queries the device
var QuerySequence = []protocol.Opcode{
	protocol.OpBattery,
	protocol.OpWindSuppressionQuery,
	protocol.OpAncQuery,
	protocol.OpGameModeQuery,
	protocol.OpLowLatencyQuery,
	protocol.OpDualConnQuery,
	protocol.OpEqQuery,
	protocol.OpInEarQuery,
}

// FrameWriter writes one frame synchronously
type FrameWriter interface {
	WriteFrame(ctx context.Context, frame []byte) error
}

// Poller sends the status query sequence
type Poller struct {
	writer FrameWriter
	gap    time.Duration
}

// NewPoller creates a poller spacing queries by gap
func NewPoller(writer FrameWriter, gap time.Duration) *Poller {
	return &Poller{writer: writer, gap: gap}
}

// QueryAll sends every query in QuerySequence, gap apart. It stops without
// sending further queries once ctx is cancelled or a write fails.
func (p *Poller) QueryAll(ctx context.Context) error {
	logging.Debug("Querying device status", zap.Int("queries", len(QuerySequence)))

	for i, op := range QuerySequence {
		if i > 0 && !sleepCtx(ctx, p.gap) {
			return ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.writer.WriteFrame(ctx, protocol.Query(op)); err != nil {
			logging.Debug("Status query aborted",
				zap.String("opcode", op.String()),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}
