package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"EduPulse/pkg/logger"
)

const maxDeadLetters = 100

// MemoryQueue runs jobs on in-process workers backed by a buffered channel.
// Pending messages are lost on exit.
type MemoryQueue struct {
	logger *logger.Logger
	config *QueueConfig

	mu        sync.RWMutex
	jobs      map[string]Job
	isRunning bool
	messages  chan Message
	stopCh    chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	retries   sync.WaitGroup
	dead      []Message
}

var _ Queue = (*MemoryQueue)(nil)

func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig) *MemoryQueue {
	cfg := config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		logger:   lgr,
		config:   cfg,
		jobs:     make(map[string]Job),
		messages: make(chan Message, cfg.QueueSize),
		stopCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterJob registers a single job.
func (q *MemoryQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
	q.logger.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isRunning {
		return fmt.Errorf("queue already running")
	}
	q.isRunning = true
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info("memory queue started", logger.Int("workers", q.config.Workers))
	return nil
}

// Stop stops intake and lets workers drain what is already buffered.
func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	close(q.stopCh)
	q.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		q.wg.Wait()
		q.retries.Wait()
		close(doneCh)
	}()

	select {
	case <-ctx.Done():
		q.cancel()
		q.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-doneCh:
		q.cancel()
		q.logger.Info("memory queue stopped gracefully")
		return nil
	}
}

// Enqueue fails fast when the buffer is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.isRunning {
		return ErrNotRunning
	}
	if _, exists := q.jobs[msgType]; !exists {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}
	msg, err := newMessage(msgType, payload)
	if err != nil {
		return err
	}
	select {
	case q.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("queue full (%d)", q.config.QueueSize)
	}
}

// DeadLetters returns messages that ran out of retries, newest last.
func (q *MemoryQueue) DeadLetters() []Message {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Message, len(q.dead))
	copy(out, q.dead)
	return out
}

func (q *MemoryQueue) worker(id int) {
	defer q.wg.Done()
	for {
		select {
		case msg := <-q.messages:
			q.process(msg)
		case <-q.stopCh:
			// drain
			for {
				select {
				case msg := <-q.messages:
					q.process(msg)
				default:
					q.logger.Debug("queue worker stopping", logger.Int("worker_id", id))
					return
				}
			}
		}
	}
}

func (q *MemoryQueue) process(msg Message) {
	q.mu.RLock()
	job, exists := q.jobs[msg.Type]
	q.mu.RUnlock()
	if !exists {
		q.logger.Error("no job found", logger.String("type", msg.Type), logger.String("id", msg.ID))
		return
	}

	err := job.Handle(q.ctx, msg.Payload)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		q.logger.Warn("message cancelled", logger.String("id", msg.ID), logger.String("job", job.Name()))
		return
	}
	q.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= q.config.RetryLimit {
		q.logger.Error("max retries reached", logger.String("id", msg.ID), logger.String("job", job.Name()))
		q.deadLetter(msg)
		return
	}
	msg.Attempts++
	q.scheduleRetry(msg)
}

func (q *MemoryQueue) scheduleRetry(msg Message) {
	q.retries.Add(1)
	go func() {
		defer q.retries.Done()
		t := time.NewTimer(q.config.RetryDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-q.ctx.Done():
			q.deadLetter(msg)
			return
		}
		q.mu.RLock()
		running := q.isRunning
		if running {
			select {
			case q.messages <- msg:
				q.mu.RUnlock()
				return
			default:
			}
		}
		q.mu.RUnlock()
		if !running {
			// workers may already have drained and exited
			q.process(msg)
			return
		}
		q.logger.Warn("retry dropped, queue full", logger.String("id", msg.ID))
		q.deadLetter(msg)
	}()
}

func (q *MemoryQueue) deadLetter(msg Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, msg)
	if len(q.dead) > maxDeadLetters {
		q.dead = q.dead[len(q.dead)-maxDeadLetters:]
	}
}
