package pipeline

import (
	"context"
	"os/exec"

	"panelcast/internal/media/ffprobe"
)

// ProbeVerifier returns a VerifyFunc that requires a video stream, or nil when
// the ffprobe binary cannot be found.
func ProbeVerifier(binary string) VerifyFunc {
	if _, err := exec.LookPath(binary); err != nil {
		return nil
	}
	return func(ctx context.Context, path string) error {
		_, err := ffprobe.Playable(ctx, binary, path)
		return err
	}
}
