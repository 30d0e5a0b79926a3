package consumer

import (
	"log/slog"
	"time"

	"github.com/richd0tcom/trashbin/internal/domain"
)

// LogNotifier is the default change listener. It only records that new
// detections arrived; dashboards poll the series endpoints to refresh.
type LogNotifier struct {
	name   string
	logger *slog.Logger
}

func NewLogNotifier(name string, logger *slog.Logger) *LogNotifier {
	return &LogNotifier{name: name, logger: logger}
}

func (n *LogNotifier) Notify(changes []domain.Change) error {
	for _, ch := range changes {
		n.logger.Info("detections recorded",
			slog.String("listener", n.name),
			slog.String("category", ch.Category.String()),
			slog.Int("count", ch.Count),
			slog.String("latest", ch.Latest.Format(time.RFC3339)))
	}
	return nil
}
