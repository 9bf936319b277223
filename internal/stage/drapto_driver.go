package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"panelcast/internal/logging"
	"panelcast/internal/services/drapto"
)

// Encoder is the in-process encode contract used by DraptoDriver.
type Encoder interface {
	Encode(ctx context.Context, inputPath, outputPath string) error
}

// DraptoDriver runs the re-encode through the drapto library. The expanded
// invocation's first two arguments are the input and output paths; the
// command is ignored.
type DraptoDriver struct {
	Encoder Encoder
}

// NewDraptoDriver builds a driver that logs encode progress at debug level.
func NewDraptoDriver(logger *slog.Logger) *DraptoDriver {
	if logger == nil {
		logger = logging.NewNop()
	}
	enc := drapto.NewEncoder(func(p drapto.Progress) {
		logger.Debug("drapto progress",
			logging.String("phase", p.Stage),
			logging.Any("percent", p.Percent),
			logging.String("message", p.Message),
		)
	})
	return &DraptoDriver{Encoder: enc}
}

// Launch implements Driver.
func (d *DraptoDriver) Launch(ctx context.Context, inv Invocation, stderr io.Writer) (int, error) {
	if d.Encoder == nil {
		return -1, errors.New("drapto encoder not configured")
	}
	if len(inv.Args) < 2 {
		return -1, fmt.Errorf("drapto driver expects input and output arguments, got %d", len(inv.Args))
	}
	if err := d.Encoder.Encode(ctx, inv.Args[0], inv.Args[1]); err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1, err
	}
	return 0, nil
}
