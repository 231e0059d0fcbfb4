package studio

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	v1 "github.com/mixdeskhq/mixdesk/api/v1"
	"github.com/mixdeskhq/mixdesk/internal/studio/client"
	"github.com/mixdeskhq/mixdesk/pkg/metrics"
)

// DefaultPollInterval is the cadence of status polling.
const DefaultPollInterval = 3 * time.Second

// Controller owns at most one in-flight mashup job. It creates the job
// on the composer, polls its status on a fixed cadence, applies the
// server-reported phase verbatim, and stops permanently once a terminal
// phase arrives. All job state lives behind one mutex; a generation
// token compared on every state application makes responses from a
// superseded run inert, however late they arrive.
type Controller struct {
	composer client.Composer
	interval time.Duration

	l          sync.Mutex
	generation uint64
	job        jobRecord
	active     bool
	closed     bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// jobRecord is the single mutable record tracked by the controller.
// id stays empty until the composer's creation response arrives and is
// never anything but a verbatim copy of it. reached is the last
// non-terminal phase observed, which step classification needs once the
// phase turns terminal.
type jobRecord struct {
	id       string
	prompt   string
	phase    v1.Phase
	reached  v1.Phase
	artifact string
}

type ControllerOption func(*Controller)

// WithPollInterval overrides the polling cadence.
func WithPollInterval(interval time.Duration) ControllerOption {
	return func(c *Controller) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

func NewController(composer client.Composer, opts ...ControllerOption) *Controller {
	c := &Controller{
		composer: composer,
		interval: DefaultPollInterval,
		job:      jobRecord{phase: v1.PhaseIdle, reached: v1.PhaseIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit validates the prompt and starts a run for it. The call returns
// immediately; creation and polling happen on the run goroutine. The
// sentinel errors report rejections without touching any job state.
func (c *Controller) Submit(prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		metrics.IncreaseJobsSubmittedMetric(metrics.SubmitRejectedEmpty)
		return ErrEmptyPrompt
	}

	c.l.Lock()
	if c.closed {
		c.l.Unlock()
		return ErrClosed
	}
	if c.active {
		c.l.Unlock()
		metrics.IncreaseJobsSubmittedMetric(metrics.SubmitRejectedActive)
		return ErrJobActive
	}

	c.generation++
	gen := c.generation
	first := v1.FirstPhase()
	c.job = jobRecord{prompt: prompt, phase: first, reached: first}
	c.active = true
	c.done = make(chan struct{})
	done := c.done

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.l.Unlock()

	metrics.IncreaseJobsSubmittedMetric(metrics.SubmitAccepted)
	metrics.SetJobActiveMetric(true)
	zap.S().Named("controller").Infow("job submitted", "prompt", prompt)

	go func() {
		defer cancel()
		c.run(runCtx, gen, prompt, done)
	}()

	return nil
}

// CurrentState returns a consistent snapshot of the job state. Safe to
// call at any time, including before any submission.
func (c *Controller) CurrentState() v1.Snapshot {
	c.l.Lock()
	defer c.l.Unlock()
	return v1.Snapshot{
		JobID:       c.job.id,
		Prompt:      c.job.prompt,
		Phase:       c.job.phase,
		Reached:     c.job.reached,
		ArtifactRef: c.job.artifact,
		Active:      c.active,
	}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done returns a channel closed once no run goroutine is in flight.
// Controllers that never submitted return an already-closed channel.
func (c *Controller) Done() <-chan struct{} {
	c.l.Lock()
	defer c.l.Unlock()
	if c.done == nil {
		return closedChan
	}
	return c.done
}

// Close tears the controller down: any in-flight run is cancelled and
// joined, and every later Submit is rejected. A response already on the
// wire at cancellation time is discarded by the generation check, so
// the observable state never changes after Close returns. Idempotent.
func (c *Controller) Close() {
	c.l.Lock()
	if c.closed {
		c.l.Unlock()
		return
	}
	c.closed = true
	c.generation++
	cancel := c.cancel
	done := c.done
	wasActive := c.active
	c.active = false
	c.l.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if wasActive {
		metrics.SetJobActiveMetric(false)
	}
	zap.S().Named("controller").Info("controller closed")
}

// run performs the creation call and then the poll loop for one
// submission. Polls are strictly sequential: the ticker is only read
// again after the previous response has been fully applied.
func (c *Controller) run(ctx context.Context, gen uint64, prompt string, done chan struct{}) {
	defer close(done)

	id, err := c.composer.CreateJob(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		zap.S().Named("controller").Errorw("job creation failed", "error", err)
		c.fail(gen)
		return
	}
	if !c.applyCreated(gen, id) {
		return
	}
	zap.S().Named("controller").Infow("job created", "job_id", id)

	ticker := jitterbug.New(c.interval, &jitterbug.Norm{Stdev: c.interval / 100})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := c.composer.GetJobStatus(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			zap.S().Named("controller").Errorw("status poll failed", "job_id", id, "error", err)
			c.fail(gen)
			return
		}

		if stop := c.applyStatus(gen, id, status); stop {
			return
		}
	}
}

// applyCreated records the job id. It reports false when the run is
// stale and must exit without polling.
func (c *Controller) applyCreated(gen uint64, id string) bool {
	c.l.Lock()
	defer c.l.Unlock()
	if gen != c.generation {
		return false
	}
	c.job.id = id
	return true
}

// applyStatus applies one wire status verbatim. It reports true when
// the run must stop: either the run is stale or the phase is terminal.
// Unknown statuses and a complete status without a file url are
// malformed responses and fail the job.
func (c *Controller) applyStatus(gen uint64, id string, status client.JobStatus) bool {
	phase, ok := v1.StringToPhase(status.Status)
	if !ok {
		zap.S().Named("controller").Errorw("malformed status", "job_id", id, "status", status.Status)
		c.fail(gen)
		return true
	}
	if phase == v1.PhaseComplete && status.FileURL == "" {
		zap.S().Named("controller").Errorw("complete status without file url", "job_id", id)
		c.fail(gen)
		return true
	}

	c.l.Lock()
	defer c.l.Unlock()
	if gen != c.generation {
		return true
	}

	c.job.phase = phase
	if !phase.Terminal() {
		c.job.reached = phase
		return false
	}

	if phase == v1.PhaseComplete {
		c.job.artifact = status.FileURL
	}
	c.active = false
	metrics.SetJobActiveMetric(false)
	metrics.IncreaseJobsFinishedMetric(string(phase))
	zap.S().Named("controller").Infow("job finished", "job_id", id, "phase", phase)
	return true
}

// fail forces the terminal failed phase, unless the run is stale.
func (c *Controller) fail(gen uint64) {
	c.l.Lock()
	defer c.l.Unlock()
	if gen != c.generation {
		return
	}
	c.job.phase = v1.PhaseFailed
	c.active = false
	metrics.SetJobActiveMetric(false)
	metrics.IncreaseJobsFinishedMetric(string(v1.PhaseFailed))
}
