package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dop251/goja"

	"github.com/wricardo/stitch-turtle/turtle/engine"
)

// Variant names one of the three SVG renderings of a run
type Variant string

const (
	VariantCombined Variant = Variant(engine.FaceCombined)
	VariantFront    Variant = Variant(engine.FaceFront)
	VariantBack     Variant = Variant(engine.FaceBack)
)

// Variants lists the variants in output order
var Variants = []Variant{VariantCombined, VariantFront, VariantBack}

// ParseVariant resolves a variant name. "both" is accepted for combined.
func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "combined", "both", "":
		return VariantCombined, nil
	case "front":
		return VariantFront, nil
	case "back":
		return VariantBack, nil
	}
	return "", fmt.Errorf("unknown variant %q", name)
}

// Face maps the variant to the engine face it renders
func (v Variant) Face() engine.Face {
	return engine.Face(v)
}

// Options controls a run
type Options struct {
	Timeout     time.Duration // zero means no limit besides the context
	MaxSegments int           // zero means unlimited
	Seed        string        // seeds Math.random when set
	Logger      *log.Logger

	prepare func(*goja.Runtime) // extra bindings, used by tests
}

// Result is the outcome of a successful run
type Result struct {
	Code     string             `json:"code"`
	SVG      map[Variant]string `json:"svg"`
	Width    int                `json:"width"`
	Height   int                `json:"height"`
	Tracks   int                `json:"tracks"`
	Segments int                `json:"segments"`
	Drawn    int                `json:"drawn"`
	Duration time.Duration      `json:"duration"`
}

// Execute runs code once in a fresh context and returns the three SVG documents.
func Execute(ctx context.Context, code string, opts Options) (*Result, error) {
	start := time.Now()
	turtle, err := Trace(ctx, code, opts)
	if err != nil {
		return nil, err
	}

	docs := turtle.Documents()
	canvas := turtle.Canvas()
	stats := turtle.Stats()
	res := &Result{
		Code:     code,
		SVG:      make(map[Variant]string, len(docs)),
		Width:    canvas.Width,
		Height:   canvas.Height,
		Tracks:   stats.Tracks,
		Segments: stats.Segments,
		Drawn:    stats.Drawn,
		Duration: time.Since(start),
	}
	for face, doc := range docs {
		res.SVG[Variant(face)] = doc
	}
	return res, nil
}

// Trace runs code once and returns the turtle it drew with, for callers that
// inspect tracks instead of documents.
func Trace(ctx context.Context, code string, opts Options) (*engine.Turtle, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRunCancelled, err)
	}

	turtle := engine.NewTurtle(engine.WithMaxSegments(opts.MaxSegments))
	vm := goja.New()
	if opts.Seed != "" {
		vm.SetRandSource(seededSource(opts.Seed))
	}
	if err := bind(vm, turtle); err != nil {
		return nil, fmt.Errorf("%w: binding vocabulary: %v", ErrRunnerCrashed, err)
	}
	if opts.prepare != nil {
		opts.prepare(vm)
	}

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	if err := evaluate(vm, code); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("%w: %v", ErrRunCancelled, interrupted.Value())
		}
		return nil, err
	}
	return turtle, nil
}

// evaluate runs the script, turning Go panics into ErrRunnerCrashed
func evaluate(vm *goja.Runtime, code string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrRunnerCrashed, p)
		}
	}()

	_, err = vm.RunString(code)
	if err == nil {
		return nil
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return err
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return fmt.Errorf("%w: %s", ErrScriptFailed, exception.Error())
	}
	return fmt.Errorf("%w: %v", ErrScriptFailed, err)
}

// Runner is a single execution context. It runs one script at a time;
// submitting while busy aborts the in-flight run.
type Runner struct {
	opts Options
	log  *log.Logger

	runMu sync.Mutex // serializes runs

	mu      sync.Mutex // guards fields below
	cancel  context.CancelFunc
	crashed error
	runs    int
}

// NewRunner creates a runner ready to accept scripts
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		opts: opts,
		log:  logger.WithPrefix("runner"),
	}
}

// Run executes code, aborting whatever run is currently in flight first.
func (r *Runner) Run(ctx context.Context, code string) (*Result, error) {
	if r.Cancel() {
		r.log.Debug("superseded in-flight run")
	}

	r.runMu.Lock()
	defer r.runMu.Unlock()

	r.mu.Lock()
	if r.crashed != nil {
		crashed := r.crashed
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrRunnerBroken, crashed)
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.runs++
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()

	res, err := Execute(runCtx, code, r.opts)
	if errors.Is(err, ErrRunnerCrashed) {
		r.mu.Lock()
		r.crashed = err
		r.mu.Unlock()
		r.log.Error("execution context crashed", "error", err)
	}
	return res, err
}

// Cancel aborts the in-flight run. It reports whether a run was aborted.
func (r *Runner) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

// Restart discards a crashed context so the runner accepts scripts again
func (r *Runner) Restart() {
	r.Cancel()
	r.mu.Lock()
	r.crashed = nil
	r.mu.Unlock()
	r.log.Info("runner restarted")
}

// Busy reports whether a run is in flight
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Crashed returns the crash that broke the runner, or nil
func (r *Runner) Crashed() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.crashed
}

// Runs returns how many runs were started
func (r *Runner) Runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}
