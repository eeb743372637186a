package virtwho

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/virtwho-qe/harness/internal/models"
	"github.com/virtwho-qe/harness/pkg/errors"
	"github.com/virtwho-qe/harness/pkg/scheduler"
	"github.com/virtwho-qe/harness/pkg/sshexec"
)

const (
	// pollIterations caps one polling cycle (~7.5 minutes at the
	// default cadence). Hard limit, not configurable.
	pollIterations = 30
	// maxAttempts caps the launch attempts per run. Hard limit.
	maxAttempts = 4
)

// Runner orchestrates one end-to-end execution of the agent: clear
// prior state, launch concurrently with log polling, retry known
// transient backend failures with backoff, and hand the captured log to
// the analyzer. A Runner instance processes one run at a time; callers
// must not overlap runs against the same remote host.
type Runner struct {
	runCtx   models.RunContext
	executor sshexec.Executor
	process  *ProcessController
	logger   *zap.SugaredLogger

	// PollInterval is the pause between log fetches.
	PollInterval time.Duration
	// BackoffUnit scales the waits between retried attempts: a rate
	// limit waits BackoffUnit×(attempt+3), a server error waits one
	// unit.
	BackoffUnit time.Duration
}

func NewRunner(runCtx models.RunContext, executor sshexec.Executor, process *ProcessController) *Runner {
	return &Runner{
		runCtx:       runCtx,
		executor:     executor,
		process:      process,
		logger:       zap.S().Named("runner"),
		PollInterval: 15 * time.Second,
		BackoffUnit:  60 * time.Second,
	}
}

// Context returns the immutable run parameters.
func (r *Runner) Context() models.RunContext {
	return r.runCtx
}

// RunCommandLine runs the agent by command line and analyzes the result.
func (r *Runner) RunCommandLine(ctx context.Context, spec models.LaunchSpec) (models.AnalysisResult, error) {
	spec.Service = false
	return r.run(ctx, spec)
}

// RunService runs the agent through its system service and analyzes the
// result.
func (r *Runner) RunService(ctx context.Context, spec models.LaunchSpec) (models.AnalysisResult, error) {
	spec.Service = true
	return r.run(ctx, spec)
}

// run drives the launch attempts: each attempt captures the log, and
// the two known transient backend failures trigger a backoff and a
// fresh attempt instead of surfacing.
func (r *Runner) run(ctx context.Context, spec models.LaunchSpec) (models.AnalysisResult, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		capture, err := r.attempt(ctx, spec)
		if err != nil {
			return models.AnalysisResult{}, err
		}

		switch {
		case hasMatch(capture.Log, rateLimitMarker):
			wait := r.BackoffUnit * time.Duration(attempt+3)
			r.logger.Warnw("429 found, trying again after backoff",
				"attempt", attempt+1, "wait", wait)
			if err := sleep(ctx, wait); err != nil {
				return models.AnalysisResult{}, err
			}
		case hasMatch(capture.Log, serverErrorMarker):
			r.logger.Warnw("server returned 500, restarting virt-who after backoff",
				"attempt", attempt+1, "wait", r.BackoffUnit)
			if err := sleep(ctx, r.BackoffUnit); err != nil {
				return models.AnalysisResult{}, err
			}
		default:
			return Analyze(capture, r.runCtx), nil
		}
	}
	return models.AnalysisResult{}, errors.NewRunExhaustedError(maxAttempts)
}

// attempt performs one launch-and-poll cycle and assembles the capture.
func (r *Runner) attempt(ctx context.Context, spec models.LaunchSpec) (models.Capture, error) {
	if err := r.process.Stop(ctx); err != nil {
		return models.Capture{}, err
	}
	if err := r.clearState(ctx); err != nil {
		return models.Capture{}, err
	}

	launch := r.launch(ctx, spec)

	log, err := r.poll(ctx, spec.Wait)
	if err != nil {
		return models.Capture{}, err
	}

	capture := models.Capture{Log: log}
	if threads, err := r.process.CountRunning(ctx); err == nil {
		capture.Threads = threads
	} else {
		r.logger.Warnw("cannot count agent processes", "err", err)
	}
	capture.PrintJSON = r.fetchPrintJSON(ctx)
	// The launch is fire-and-forget; its output is informational only.
	if result, resolved := launch.Poll(); resolved {
		if out, ok := result.Data.(string); ok {
			capture.Stdout = out
		}
	}
	return capture, nil
}

func (r *Runner) launch(ctx context.Context, spec models.LaunchSpec) *scheduler.Future {
	if spec.Service {
		return r.process.sched.AddTask(func(context.Context) (any, error) {
			return "", r.process.StartService(ctx)
		})
	}
	return r.process.StartCommandLine(ctx, spec.CommandLine(r.runCtx))
}

// poll fetches the remote log every PollInterval and stops at the first
// terminal condition: backend rate limit, agent exited, error logged,
// successful send, or the iteration cap.
func (r *Runner) poll(ctx context.Context, wait time.Duration) (string, error) {
	if wait > 0 {
		if err := sleep(ctx, wait); err != nil {
			return "", err
		}
	}

	var log string
	for i := 0; i < pollIterations; i++ {
		if err := sleep(ctx, r.PollInterval); err != nil {
			return log, err
		}

		_, out, err := r.executor.Execute(ctx, fmt.Sprintf("cat %s", r.runCtx.LogFile))
		if err != nil {
			r.logger.Debugw("log fetch failed, keeping last snapshot", "err", err)
		} else {
			log = out
		}

		if hasMatch(log, rateLimitMarker) {
			r.logger.Warn("429 found while virt-who is running")
			return log, nil
		}
		threads, err := r.process.CountRunning(ctx)
		if err != nil {
			r.logger.Debugw("cannot count agent processes", "err", err)
		} else if threads == 0 {
			r.logger.Info("virt-who terminated by itself")
			return log, nil
		}
		if hasMatch(log, errorLineMarker) {
			r.logger.Info("error found while virt-who is running")
			return log, nil
		}
		if sendCount(log, r.runCtx) > 0 {
			r.logger.Info("virt-who sent its mapping")
			return log, nil
		}
	}
	r.logger.Info("timed out waiting for virt-who")
	return log, nil
}

// clearState removes the previous run's log and print output.
func (r *Runner) clearState(ctx context.Context) error {
	logDir := strings.TrimSuffix(r.runCtx.LogFile, "/rhsm.log")
	if _, _, err := r.executor.Execute(ctx, fmt.Sprintf("rm -rf %s/*", logDir)); err != nil {
		return fmt.Errorf("clearing rhsm logs: %w", err)
	}
	if _, _, err := r.executor.Execute(ctx, fmt.Sprintf("rm -rf %s", r.runCtx.PrintJSONFile)); err != nil {
		return fmt.Errorf("clearing print output: %w", err)
	}
	return nil
}

// fetchPrintJSON reads the optional print output file; empty when the
// file is absent or empty.
func (r *Runner) fetchPrintJSON(ctx context.Context) string {
	code, out, err := r.executor.Execute(ctx, fmt.Sprintf("cat %s", r.runCtx.PrintJSONFile))
	if err != nil || code != 0 {
		return ""
	}
	return out
}
