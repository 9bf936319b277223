package workspace

import (
	"fmt"
	"os"

	"panelcast/internal/fileutil"
	"panelcast/internal/services"
)

// Prepare recreates every output directory empty and ensures the input
// directories exist without touching their contents. Running it twice leaves
// the same state.
func Prepare(l Layout) error {
	for _, dir := range l.Inputs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return services.Wrap(services.ErrWorkspace, "workspace", "prepare", fmt.Sprintf("create %s", dir), err)
		}
	}
	for _, dir := range l.Outputs() {
		if err := fileutil.ResetDir(dir); err != nil {
			return services.Wrap(services.ErrWorkspace, "workspace", "prepare", fmt.Sprintf("reset %s", dir), err)
		}
	}
	return nil
}

// Clear empties inputs and outputs alike.
func Clear(l Layout) error {
	dirs := append(l.Inputs(), l.Outputs()...)
	for _, dir := range dirs {
		if err := fileutil.ResetDir(dir); err != nil {
			return services.Wrap(services.ErrWorkspace, "workspace", "clear", fmt.Sprintf("reset %s", dir), err)
		}
	}
	return nil
}
