// Package jobs binds configured jobs onto a shared timer. Apply diffs a new
// job list against the running set, so config hot reloads only touch the
// subscriptions that actually changed.
package jobs

import (
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"metronome/internal/config"
	"metronome/pkg/logx"
	"metronome/schedule"
	"metronome/timer"
)

type Runner struct {
	t   *timer.Timer
	log logx.Logger

	mu    sync.Mutex
	bound map[string]*boundJob
}

type boundJob struct {
	cfg     config.JobConfig
	binding *schedule.Binding
}

func NewRunner(t *timer.Timer, log logx.Logger) *Runner {
	return &Runner{t: t, log: log, bound: map[string]*boundJob{}}
}

// Apply reconciles the registered jobs with cfgs: removed or changed jobs are
// detached, new or changed ones are bound. cfgs is expected to be validated.
func (r *Runner) Apply(cfgs []config.JobConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]config.JobConfig, len(cfgs))
	for _, c := range cfgs {
		want[c.Name] = c
	}

	for name, b := range r.bound {
		c, keep := want[name]
		if keep && jobEqual(c, b.cfg) {
			continue
		}
		b.binding.Detach()
		delete(r.bound, name)
		r.log.Debug("job detached", logx.String("job", name))
	}

	for _, c := range cfgs {
		if _, ok := r.bound[c.Name]; ok {
			continue
		}
		if err := r.bindLocked(c); err != nil {
			return fmt.Errorf("job %s: %w", c.Name, err)
		}
	}
	return nil
}

// Close detaches everything.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, b := range r.bound {
		b.binding.Detach()
		delete(r.bound, name)
	}
}

// Len reports the number of bound jobs.
func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bound)
}

func (r *Runner) bindLocked(c config.JobConfig) error {
	sched, err := schedule.Parse(c.Schedule)
	if err != nil {
		return err
	}
	sub, err := r.newSubscriber(c)
	if err != nil {
		return err
	}
	b, err := schedule.Bind(r.t, sched, sub, nil, c.Once)
	if err != nil {
		return err
	}
	r.bound[c.Name] = &boundJob{cfg: c, binding: b}
	r.log.Debug("job bound",
		logx.String("job", c.Name),
		logx.String("schedule", c.Schedule),
		logx.Bool("once", c.Once))
	return nil
}

func (r *Runner) newSubscriber(c config.JobConfig) (timer.Subscriber, error) {
	timeout, err := config.ParseDurationField(c.Name+".timeout", c.Timeout)
	if err != nil {
		return nil, err
	}
	if len(c.Command) > 0 {
		return &execJob{name: c.Name, argv: c.Command, timeout: timeout, log: r.log}, nil
	}
	return &logJob{name: c.Name, message: c.Message, log: r.log}, nil
}

func jobEqual(a, b config.JobConfig) bool {
	return a.Name == b.Name &&
		a.Schedule == b.Schedule &&
		a.Once == b.Once &&
		a.Message == b.Message &&
		a.Timeout == b.Timeout &&
		slices.Equal(a.Command, b.Command)
}

// logJob prints its configured message. Useful for heartbeats and for testing
// schedules without side effects.
type logJob struct {
	name    string
	message string
	log     logx.Logger
}

func (j *logJob) Name() string { return j.name }

func (j *logJob) Notify(any) error {
	j.log.Info(j.message, logx.String("job", j.name))
	return nil
}

// execJob runs its configured command, killing it at the timeout.
type execJob struct {
	name    string
	argv    []string
	timeout time.Duration
	log     logx.Logger
}

func (j *execJob) Name() string { return j.name }

func (j *execJob) Notify(any) error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, j.argv[0], j.argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("command failed: %w (output: %s)", err, truncateOutput(out))
	}
	j.log.Debug("job command finished",
		logx.String("job", j.name),
		logx.Duration("took", time.Since(start)))
	return nil
}

func truncateOutput(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	return s
}
