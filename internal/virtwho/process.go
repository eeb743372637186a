package virtwho

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/virtwho-qe/harness/pkg/errors"
	"github.com/virtwho-qe/harness/pkg/scheduler"
	"github.com/virtwho-qe/harness/pkg/sshexec"
)

const agentProcessName = "virt-who"

// ProcessController starts and stops the agent on the remote host, as a
// command line or through its system service, and reports how many
// instances are running.
type ProcessController struct {
	executor sshexec.Executor
	sched    *scheduler.Scheduler
	name     string
	logger   *zap.SugaredLogger

	// Settle is the fixed delay after a service action before the
	// controller returns.
	Settle time.Duration
}

func NewProcessController(executor sshexec.Executor, sched *scheduler.Scheduler) *ProcessController {
	return &ProcessController{
		executor: executor,
		sched:    sched,
		name:     agentProcessName,
		logger:   zap.S().Named("process"),
		Settle:   10 * time.Second,
	}
}

// Stop halts the agent service, force-kills any leftover process by
// name, removes the stale pid file, and verifies nothing matching the
// agent's name survives.
func (c *ProcessController) Stop(ctx context.Context) error {
	if _, _, err := c.Service(ctx, "stop"); err != nil {
		return err
	}
	killed, err := c.killByName(ctx, c.name)
	if err != nil {
		return err
	}
	if !killed {
		return errors.NewProcessCleanupError(c.name)
	}
	return nil
}

// StartCommandLine launches the given fully-formed command string on the
// remote host without awaiting its output. The returned future resolves
// to the command's combined output once it exits.
func (c *ProcessController) StartCommandLine(ctx context.Context, cli string) *scheduler.Future {
	c.logger.Infow("starting virt-who by cli", "cli", cli)
	return c.sched.AddTask(func(context.Context) (any, error) {
		_, out, err := c.executor.Execute(ctx, cli)
		return out, err
	})
}

// StartService issues a restart on the agent's system service.
func (c *ProcessController) StartService(ctx context.Context) error {
	c.logger.Info("starting virt-who by service")
	_, _, err := c.Service(ctx, "restart")
	return err
}

// Service runs a systemctl action on the agent service and waits the
// settle delay before returning.
func (c *ProcessController) Service(ctx context.Context, action string) (int, string, error) {
	code, out, err := c.executor.Execute(ctx, fmt.Sprintf("systemctl %s %s", action, c.name))
	if err != nil {
		return code, out, fmt.Errorf("systemctl %s: %w", action, err)
	}
	if err := sleep(ctx, c.Settle); err != nil {
		return code, out, err
	}
	return code, out, nil
}

// CountRunning returns the number of processes whose command line
// matches the agent's name, excluding the query itself.
func (c *ProcessController) CountRunning(ctx context.Context) (int, error) {
	cmd := fmt.Sprintf("ps -ef | grep %s -i | grep -v grep | wc -l", c.name)
	_, out, err := c.executor.Execute(ctx, cmd)
	if err != nil {
		return 0, err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("unexpected ps output %q: %w", out, err)
	}
	return n, nil
}

// killByName kills every process matching the name, removes its pid
// file, and reports whether the process list is clean afterwards.
func (c *ProcessController) killByName(ctx context.Context, name string) (bool, error) {
	kill := fmt.Sprintf("ps -ef | grep %s -i | grep -v grep | awk '{print $2}' | xargs -I {} kill -9 {}", name)
	if _, _, err := c.executor.Execute(ctx, kill); err != nil {
		return false, err
	}
	if _, _, err := c.executor.Execute(ctx, fmt.Sprintf("rm -f /var/run/%s.pid", name)); err != nil {
		return false, err
	}
	_, out, err := c.executor.Execute(ctx, fmt.Sprintf("ps -ef | grep %s -i | grep -v grep | sort", name))
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(out) != "" {
		c.logger.Warnw("processes survived kill", "name", name, "ps", out)
		return false, nil
	}
	return true, nil
}

// sleep waits for d unless the context ends first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
