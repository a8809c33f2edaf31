package alerts

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes notifications to the service log at a level matching the
// presentation.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify implements Sink.
func (s *LogSink) Notify(_ context.Context, n Notification) error {
	fields := []zap.Field{
		zap.String("station_id", n.StationID),
		zap.String("battery_id", n.Alert.BatteryID),
		zap.String("level", string(n.Alert.Level)),
		zap.String("message", n.Alert.Message),
	}
	switch n.Presentation {
	case PresentError:
		s.logger.Error("battery alert", fields...)
	case PresentWarning:
		s.logger.Warn("battery alert", fields...)
	default:
		s.logger.Info("battery alert", fields...)
	}
	return nil
}
