package drapto

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"
)

// Progress is a reduced view of drapto's reporter events.
type Progress struct {
	Stage   string
	Percent float64
	Message string
}

// Encoder runs the drapto library in-process.
type Encoder struct {
	progress func(Progress)
}

// NewEncoder constructs an Encoder. progress may be nil.
func NewEncoder(progress func(Progress)) *Encoder {
	return &Encoder{progress: progress}
}

// Encode encodes inputPath into outputPath. Drapto always writes <stem>.mkv
// into a directory, so the encode lands in a scratch directory next to
// outputPath and is renamed into place.
func (e *Encoder) Encode(ctx context.Context, inputPath, outputPath string) error {
	inputPath = strings.TrimSpace(inputPath)
	outputPath = strings.TrimSpace(outputPath)
	if inputPath == "" {
		return errors.New("input path required")
	}
	if outputPath == "" {
		return errors.New("output path required")
	}

	scratch, err := os.MkdirTemp(filepath.Dir(outputPath), ".drapto-")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return fmt.Errorf("create drapto encoder: %w", err)
	}

	var rep draptolib.Reporter
	if e.progress != nil {
		rep = newProgressReporter(e.progress)
	}

	if _, err := encoder.EncodeWithReporter(ctx, inputPath, scratch, rep); err != nil {
		return fmt.Errorf("drapto encode: %w", err)
	}

	produced := filepath.Join(scratch, outputName(inputPath))
	if err := os.Rename(produced, outputPath); err != nil {
		return fmt.Errorf("move encoded output: %w", err)
	}
	return nil
}

func outputName(inputPath string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return stem + ".mkv"
}
