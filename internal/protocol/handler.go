package protocol

import (
	"github.com/muurk/origctl/internal/logging"
	"go.uber.org/zap"
)

// ReportHandler receives decoded reports
type ReportHandler interface {
	HandleReport(Report)
}

// ReportHandlerFunc adapts a function to ReportHandler
type ReportHandlerFunc func(Report)

// HandleReport calls f(r)
func (f ReportHandlerFunc) HandleReport(r Report) { f(r) }

// HandleFrames parses frames and passes each report to h. Unknown reports are
// logged at debug level and still delivered.
func HandleFrames(address string, frames []*Frame, h ReportHandler) {
	for _, frame := range frames {
		logging.LogFrame("rx", address, frame.Raw)

		report := ParseReport(frame)
		if _, ok := report.(*UnknownReport); ok {
			logging.Debug("Unhandled frame",
				zap.String("address", address),
				zap.String("opcode", frame.Opcode.String()),
				zap.Int("length", len(frame.Raw)),
			)
		} else {
			logging.Debug("Report received",
				zap.String("address", address),
				zap.String("report", report.String()),
			)
		}

		h.HandleReport(report)
	}
}
