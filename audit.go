package accountcore

import "github.com/MrEthical07/accountcore/internal/audit"

type (
	// AuditEvent is one recorded account lifecycle event.
	AuditEvent = audit.Event
	// AuditSink receives audit events from the dispatcher.
	AuditSink = audit.Sink
	// NoOpSink drops audit events.
	NoOpSink = audit.NoOpSink
	// ChannelSink buffers audit events on a channel.
	ChannelSink = audit.ChannelSink
	// JSONWriterSink writes audit events as JSON lines.
	JSONWriterSink = audit.JSONWriterSink
	// LogSink writes audit events to a slog.Logger.
	LogSink = audit.LogSink
)

var (
	NewChannelSink    = audit.NewChannelSink
	NewJSONWriterSink = audit.NewJSONWriterSink
	NewLogSink        = audit.NewLogSink
)
