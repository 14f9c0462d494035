package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"EduPulse/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	popTimeout      = time.Second
	promoteInterval = time.Second
	promoteBatch    = 100
)

// promoteScript moves up to ARGV[2] retry entries due at ARGV[1] back to the pending list.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, m in ipairs(due) do
	redis.call('ZREM', KEYS[1], m)
	redis.call('LPUSH', KEYS[2], m)
end
return #due
`)

// RedisOption configures RedisQueue.
type RedisOption func(*RedisQueue)

// WithKeyPrefix sets the prefix of every key the queue touches.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisQueue) { r.prefix = prefix }
}

// RedisQueue keeps messages in Redis so they survive restarts and can be shared
// between instances. A worker moves a message atomically from the pending list to
// an in-flight list while it runs; failures wait in a sorted set scored by their
// retry time, and messages out of retries land in a dead letter list.
type RedisQueue struct {
	log    *logger.Logger
	cfg    *QueueConfig
	client *redis.Client
	prefix string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ Queue = (*RedisQueue)(nil)

func NewRedisQueue(l *logger.Logger, cfg *QueueConfig, client *redis.Client, opts ...RedisOption) *RedisQueue {
	r := &RedisQueue{
		log:    l,
		cfg:    cfg.withDefaults(),
		client: client,
		prefix: "edupulse:queue",
		jobs:   make(map[string]Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisQueue) pendingKey() string { return r.prefix + ":pending" }
func (r *RedisQueue) inflightKey() string { return r.prefix + ":inflight" }
func (r *RedisQueue) retryKey() string { return r.prefix + ":retry" }
func (r *RedisQueue) deadKey() string { return r.prefix + ":dead" }

func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Type()]; exists {
		r.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
}

// Start pings Redis, returns messages left in flight by a previous process to the
// pending list and starts the workers and the retry promoter.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("queue already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	recovered, err := r.recoverInflight(ctx)
	if err != nil {
		return err
	}

	runCtx, stop := context.WithCancel(context.Background())
	r.cancel = stop
	r.running = true
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work(runCtx, i)
	}
	r.wg.Add(1)
	go r.promote(runCtx)

	r.log.Info("redis queue started",
		logger.Int("workers", r.cfg.Workers),
		logger.Int("recovered", recovered),
		logger.String("prefix", r.prefix))
	return nil
}

// Stop cancels the workers and waits for the message each one is running.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("redis queue stop: %w", ctx.Err())
	}
}

func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	_, known := r.jobs[msgType]
	r.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}
	if !known {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	msg, err := newMessage(msgType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.pendingKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// DeadLetterCount returns the length of the dead letter list.
func (r *RedisQueue) DeadLetterCount(ctx context.Context) (int64, error) {
	n, err := r.client.LLen(ctx, r.deadKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("llen dead: %w", err)
	}
	return n, nil
}

func (r *RedisQueue) recoverInflight(ctx context.Context) (int, error) {
	n := 0
	for {
		err := r.client.LMove(ctx, r.inflightKey(), r.pendingKey(), "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("recover inflight: %w", err)
		}
		n++
	}
}

func (r *RedisQueue) work(ctx context.Context, id int) {
	defer r.wg.Done()
	for ctx.Err() == nil {
		raw, err := r.client.BLMove(ctx, r.pendingKey(), r.inflightKey(), "RIGHT", "LEFT", popTimeout).Result()
		switch {
		case err == nil:
		case errors.Is(err, redis.Nil), ctx.Err() != nil:
			continue
		default:
			r.log.Error("queue pop failed", logger.Int("worker_id", id), logger.Error(err))
			sleep(ctx, popTimeout)
			continue
		}
		r.handle(ctx, raw)
	}
}

// handle runs one message and settles it. Settlement uses a fresh context so a
// message that finished during shutdown still leaves the in-flight list.
func (r *RedisQueue) handle(ctx context.Context, raw string) {
	bg := context.Background()

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		r.log.Error("unreadable queue message", logger.Error(err))
		r.settle(bg, raw, func(p redis.Pipeliner) { p.LPush(bg, r.deadKey(), raw) })
		return
	}

	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.log.Error("no job found", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.settle(bg, raw, func(p redis.Pipeliner) { p.LPush(bg, r.deadKey(), raw) })
		return
	}

	err := job.Handle(ctx, msg.Payload)
	if err == nil {
		r.settle(bg, raw, nil)
		return
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// stays in flight and is recovered on the next start
		return
	}

	r.log.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= r.cfg.RetryLimit {
		r.log.Error("max retries reached", logger.String("id", msg.ID), logger.String("job", job.Name()))
		r.settle(bg, raw, func(p redis.Pipeliner) { p.LPush(bg, r.deadKey(), raw) })
		return
	}
	msg.Attempts++
	next, mErr := json.Marshal(msg)
	if mErr != nil {
		r.log.Error("marshal retry", logger.Error(mErr))
		return
	}
	at := time.Now().Add(r.cfg.RetryDelay)
	r.settle(bg, raw, func(p redis.Pipeliner) {
		p.ZAdd(bg, r.retryKey(), redis.Z{Score: float64(at.Unix()), Member: next})
	})
}

// settle removes raw from the in-flight list and applies then in the same transaction.
func (r *RedisQueue) settle(ctx context.Context, raw string, then func(redis.Pipeliner)) {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, r.inflightKey(), 1, raw)
		if then != nil {
			then(p)
		}
		return nil
	})
	if err != nil {
		r.log.Error("settle queue message", logger.Error(err))
	}
}

func (r *RedisQueue) promote(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := strconv.FormatInt(time.Now().Unix(), 10)
			n, err := promoteScript.Run(ctx, r.client, []string{r.retryKey(), r.pendingKey()}, now, promoteBatch).Int()
			if err != nil {
				if ctx.Err() == nil {
					r.log.Error("promote retries", logger.Error(err))
				}
				continue
			}
			if n > 0 {
				r.log.Debug("retries promoted", logger.Int("count", n))
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
