package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"panelcast/internal/fileutil"
	"panelcast/internal/logging"
)

// ExecutorOptions configures NewExecutor.
type ExecutorOptions struct {
	MaxStderrBytes int
	KillGrace      time.Duration
	Logger         *slog.Logger
	// Drivers overrides or extends the built-in command and drapto drivers.
	Drivers map[string]Driver
}

// Executor turns a Definition into a StageOutcome. Stage failures are
// reported in the Outcome; Run never returns an error.
type Executor struct {
	drivers   map[string]Driver
	maxStderr int
	logger    *slog.Logger
	now       func() time.Time
}

// NewExecutor constructs an Executor with the command and drapto drivers.
func NewExecutor(opts ExecutorOptions) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	drivers := map[string]Driver{
		DriverCommand: &CommandDriver{KillGrace: opts.KillGrace, Logger: logger},
		DriverDrapto:  NewDraptoDriver(logger),
	}
	for name, driver := range opts.Drivers {
		drivers[name] = driver
	}
	return &Executor{
		drivers:   drivers,
		maxStderr: opts.MaxStderrBytes,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes def against the workspace variables. An optional stage whose
// enabling flag is off is skipped without launching anything.
func (e *Executor) Run(ctx context.Context, def Definition, vars map[string]string, flags Flags) Outcome {
	outcome := Outcome{Stage: def.Name, StartedAt: e.now().UTC()}
	finish := func(status Status, diagnostic string, exitCode int) Outcome {
		outcome.Status = status
		outcome.Diagnostic = e.bound(diagnostic)
		outcome.ExitCode = exitCode
		outcome.FinishedAt = e.now().UTC()
		return outcome
	}

	if !def.Active(flags) {
		return finish(StatusSkipped, fmt.Sprintf("disabled: flag %s not set", def.EnabledBy), 0)
	}

	inv, err := Expand(def, vars, flags)
	if err != nil {
		return finish(StatusFailed, "invalid stage definition: "+err.Error(), -1)
	}
	outcome.OutputPath = inv.Produces

	if missing := missingInput(inv.Inputs); missing != "" {
		return finish(StatusFailed, missing, -1)
	}

	driver, ok := e.drivers[def.DriverName()]
	if !ok {
		return finish(StatusFailed, fmt.Sprintf("unknown driver %q", def.DriverName()), -1)
	}

	e.logger.Debug("launching stage",
		logging.String(logging.FieldStage, def.Name),
		logging.String("driver", def.DriverName()),
		logging.String("argv", strings.Join(inv.Argv(), " ")),
	)

	stderr := newTailBuffer(e.maxStderr)
	exitCode, err := driver.Launch(ctx, inv, stderr)
	if err != nil {
		diagnostic := stderr.String()
		if diagnostic == "" {
			diagnostic = err.Error()
		}
		if ctx.Err() != nil {
			diagnostic = "cancelled: " + diagnostic
		}
		return finish(StatusFailed, diagnostic, exitCode)
	}

	if inv.Produces != "" && !fileutil.Exists(inv.Produces) {
		return finish(StatusFailed, "expected output missing: "+inv.Produces, exitCode)
	}
	return finish(StatusSucceeded, "", exitCode)
}

func (e *Executor) bound(text string) string {
	limit := e.maxStderr
	if limit <= 0 {
		limit = 16 * 1024
	}
	if len(text) <= limit {
		return text
	}
	cut := len(text) - limit
	for cut < len(text) && !utf8.RuneStart(text[cut]) {
		cut++
	}
	return "..." + text[cut:]
}

func missingInput(inputs []string) string {
	for _, input := range inputs {
		if input == "" {
			continue
		}
		present, err := fileutil.Present(input)
		if err != nil {
			return fmt.Sprintf("missing input: %s: %v", input, err)
		}
		if !present {
			return "missing input: " + input
		}
	}
	return ""
}
