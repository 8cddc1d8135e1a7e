// Package queue is an in-process, at-least-once job queue. Producers never
// wait for consumers; each topic has its own dispatcher whose parallelism is
// bounded by a weighted semaphore.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var (
	ErrClosed            = errors.New("queue closed")
	ErrAlreadyRegistered = errors.New("topic already has a handler")
)

const historyLimit = 1024

// Handler processes one delivered job. Returning an error wrapped with Fatal
// fails the job; any other error is retried with backoff.
type Handler func(ctx context.Context, job *Job) error

// Observer is told about every state transition. It is called with the
// queue lock held and must not call back into the queue.
type Observer interface {
	JobTransition(topic string, from, to State)
}

type Options struct {
	MaxAttempts int
	BackoffBase time.Duration
	Observer    Observer
	Logger      *zap.Logger
}

type topic struct {
	name        string
	pending     []*Job
	notify      chan struct{}
	handler     Handler
	concurrency int64
}

type Queue struct {
	opts Options

	mu          sync.Mutex
	topics      map[string]*topic
	jobs        map[string]*Job
	finished    []string
	outstanding int
	idle        chan struct{}
	closed      bool
}

func New(opts Options) *Queue {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	idle := make(chan struct{})
	close(idle)

	return &Queue{
		opts:   opts,
		topics: make(map[string]*topic),
		jobs:   make(map[string]*Job),
		idle:   idle,
	}
}

// Enqueue stores the job and returns immediately.
func (q *Queue) Enqueue(ctx context.Context, topicName string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	job := &Job{
		ID:         uuid.NewString(),
		Topic:      topicName,
		Payload:    data,
		State:      StateQueued,
		EnqueuedAt: time.Now(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrClosed
	}
	t := q.topicLocked(topicName)
	t.pending = append(t.pending, job)
	q.jobs[job.ID] = job
	if q.outstanding == 0 {
		q.idle = make(chan struct{})
	}
	q.outstanding++
	// observed under the lock so no consumer can report Processing first
	q.observe(topicName, "", StateQueued)
	q.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}

	q.opts.Logger.Debug("job enqueued",
		zap.String("job_id", job.ID),
		zap.String("topic", topicName),
	)

	return job.ID, nil
}

// ProcessTopic registers the handler for a topic. It must be called before Run.
func (q *Queue) ProcessTopic(topicName string, handler Handler, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 1
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	t := q.topicLocked(topicName)
	if t.handler != nil {
		return fmt.Errorf("%s: %w", topicName, ErrAlreadyRegistered)
	}
	t.handler = handler
	t.concurrency = int64(concurrency)
	return nil
}

// Run dispatches jobs until ctx is cancelled, then waits for in-flight jobs.
func (q *Queue) Run(ctx context.Context) error {
	q.mu.Lock()
	var topics []*topic
	for _, t := range q.topics {
		if t.handler != nil {
			topics = append(topics, t)
		}
	}
	q.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range topics {
		t := t
		g.Go(func() error {
			q.dispatch(ctx, t)
			return nil
		})
	}
	return g.Wait()
}

// State returns the last known state of a job. Old finished jobs are forgotten.
func (q *Queue) State(jobID string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Drain blocks until every enqueued job reached a terminal state.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new jobs. Pending jobs are still delivered while Run is active.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func (q *Queue) topicLocked(name string) *topic {
	t, ok := q.topics[name]
	if !ok {
		t = &topic{name: name, notify: make(chan struct{}, 1)}
		q.topics[name] = t
	}
	return t
}

func (q *Queue) pop(t *topic) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(t.pending) == 0 {
		return nil
	}
	job := t.pending[0]
	t.pending[0] = nil
	t.pending = t.pending[1:]
	return job
}

func (q *Queue) pushFront(t *topic, job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t.pending = append([]*Job{job}, t.pending...)
}

func (q *Queue) dispatch(ctx context.Context, t *topic) {
	sem := semaphore.NewWeighted(t.concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		job := q.pop(t)
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-t.notify:
				continue
			}
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			q.pushFront(t, job)
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			q.process(ctx, t, job)
		}()
	}
}

func (q *Queue) process(ctx context.Context, t *topic, job *Job) {
	log := q.opts.Logger.With(
		zap.String("job_id", job.ID),
		zap.String("topic", t.name),
	)

	q.transition(job, StateProcessing, nil)

	backoff := retry.WithMaxRetries(uint64(q.opts.MaxAttempts-1), retry.NewExponential(q.opts.BackoffBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		q.mu.Lock()
		job.Attempts++
		snapshot := *job
		q.mu.Unlock()

		err := q.invoke(ctx, t.handler, &snapshot)
		if err == nil || IsFatal(err) {
			return err
		}
		log.Warn("job attempt failed",
			zap.Int("attempt", snapshot.Attempts),
			zap.Error(err),
		)
		return retry.RetryableError(err)
	})

	if err != nil {
		log.Error("job failed", zap.Bool("fatal", IsFatal(err)), zap.Error(err))
		q.transition(job, StateFailed, err)
		return
	}

	log.Debug("job completed")
	q.transition(job, StateCompleted, nil)
}

func (q *Queue) invoke(ctx context.Context, h Handler, job *Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h(ctx, job)
}

func (q *Queue) transition(job *Job, to State, cause error) {
	q.mu.Lock()
	from := job.State
	job.State = to
	if cause != nil {
		job.Error = cause.Error()
	}
	if to.Terminal() {
		q.finished = append(q.finished, job.ID)
		if len(q.finished) > historyLimit {
			delete(q.jobs, q.finished[0])
			q.finished = q.finished[1:]
		}
		q.outstanding--
		if q.outstanding == 0 {
			close(q.idle)
		}
	}
	q.observe(job.Topic, from, to)
	q.mu.Unlock()
}

func (q *Queue) observe(topicName string, from, to State) {
	if q.opts.Observer != nil {
		q.opts.Observer.JobTransition(topicName, from, to)
	}
}
