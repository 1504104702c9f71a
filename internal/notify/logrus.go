package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/peterkuimelis/cardrules/internal/log"
)

// LogPublisher writes each event as a structured log entry.
type LogPublisher struct {
	Logger logrus.FieldLogger
	Level  logrus.Level
}

// NewLogPublisher logs events at debug level on logger, or on the standard
// logrus logger when logger is nil.
func NewLogPublisher(logger logrus.FieldLogger) *LogPublisher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogPublisher{Logger: logger, Level: logrus.DebugLevel}
}

func (p *LogPublisher) Publish(_ context.Context, gameID string, events []log.GameEvent) error {
	for _, ev := range events {
		entry := p.Logger.WithFields(logrus.Fields{
			"game_id": gameID,
			"seq":     ev.Seq,
			"round":   ev.Round,
			"turn":    ev.Turn,
			"event":   ev.Type.String(),
		})
		if ev.Player != "" {
			entry = entry.WithField("player_id", ev.Player)
		}
		switch p.Level {
		case logrus.InfoLevel:
			entry.Info(ev.Details)
		case logrus.TraceLevel:
			entry.Trace(ev.Details)
		default:
			entry.Debug(ev.Details)
		}
	}
	return nil
}
