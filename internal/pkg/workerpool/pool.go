package workerpool

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Priority 优先级定义，同优先级按提交顺序执行
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 10
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
	ErrQueueFull  = errors.New("worker pool queue is full")
	ErrTaskPanic  = errors.New("task panicked")
)

// TaskResult 任务结果
type TaskResult struct {
	Data  interface{}
	Error error
}

// ============= 配置 =============

// Config Worker Pool 配置
type Config struct {
	Workers   int // 并发 worker 数量，1 表示串行执行
	QueueSize int // 等待队列上限，<=0 不限制
}

// DefaultConfig 默认配置：单 worker 串行调度
func DefaultConfig() *Config {
	return &Config{
		Workers:   1,
		QueueSize: 1000,
	}
}

// ============= 统计信息 =============

// Statistics 统计信息
type Statistics struct {
	Submitted int64 `json:"submitted"` // 已提交
	Completed int64 `json:"completed"` // 已完成
	Rejected  int64 `json:"rejected"`  // 队列满或已关闭被拒绝
	Dropped   int64 `json:"dropped"`   // 关闭时仍在队列中
	Panicked  int64 `json:"panicked"`
	Running   int64 `json:"running"` // 运行中
	Waiting   int   `json:"waiting"` // 排队中
}

// ============= 优先级队列 =============

type queuedTask struct {
	priority Priority
	seq      uint64
	run      func()
	drop     func()
	index    int
}

type taskQueue []*queuedTask

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	task := x.(*queuedTask)
	task.index = len(*q)
	*q = append(*q, task)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// ============= Worker Pool =============

// Pool 调度队列 + ants worker pool
// 调度器按 (优先级, 提交顺序) 出队，同时运行的任务数不超过 Workers
type Pool struct {
	pool   *ants.Pool
	config *Config

	queueMu  sync.Mutex
	queue    *taskQueue
	nextSeq  uint64
	notEmpty chan struct{}
	slots    chan struct{}

	statsMu sync.Mutex
	stats   Statistics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *zap.Logger
}

// New 创建 Worker Pool
func New(config *Config, logger *zap.Logger) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		config:   config,
		notEmpty: make(chan struct{}, 1),
		slots:    make(chan struct{}, config.Workers),
		logger:   logger,
	}

	// 任务自身已 recover，这里兜底记录
	antsPool, err := ants.NewPool(config.Workers,
		ants.WithPanicHandler(func(err interface{}) {
			logger.Error("worker panic", zap.Any("error", err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}
	p.pool = antsPool

	q := make(taskQueue, 0, 64)
	heap.Init(&q)
	p.queue = &q

	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.wg.Add(1)
	go p.scheduler()

	return p, nil
}

// Submit 以普通优先级提交任务
func (p *Pool) Submit(task func()) error {
	return p.SubmitWithPriority(PriorityNormal, task)
}

// SubmitWithPriority 提交带优先级的任务
func (p *Pool) SubmitWithPriority(priority Priority, task func()) error {
	return p.enqueue(priority, task, nil)
}

// SubmitWithResult 提交任务并返回结果 channel；任务被拒绝时返回 error
func (p *Pool) SubmitWithResult(priority Priority, task func() (interface{}, error)) (<-chan TaskResult, error) {
	resultCh := make(chan TaskResult, 1)

	run := func() {
		defer func() {
			if r := recover(); r != nil {
				p.incStat(func(s *Statistics) { s.Panicked++ })
				p.logger.Error("task panic", zap.Any("error", r), zap.Stack("stacktrace"))
				resultCh <- TaskResult{Error: fmt.Errorf("%w: %v", ErrTaskPanic, r)}
			}
		}()
		data, err := task()
		resultCh <- TaskResult{Data: data, Error: err}
	}
	drop := func() {
		resultCh <- TaskResult{Error: ErrPoolClosed}
	}

	if err := p.enqueue(priority, run, drop); err != nil {
		return nil, err
	}
	return resultCh, nil
}

func (p *Pool) enqueue(priority Priority, run, drop func()) error {
	select {
	case <-p.ctx.Done():
		p.incStat(func(s *Statistics) { s.Rejected++ })
		return ErrPoolClosed
	default:
	}

	p.queueMu.Lock()
	if p.config.QueueSize > 0 && p.queue.Len() >= p.config.QueueSize {
		p.queueMu.Unlock()
		p.incStat(func(s *Statistics) { s.Rejected++ })
		return ErrQueueFull
	}
	p.nextSeq++
	heap.Push(p.queue, &queuedTask{
		priority: priority,
		seq:      p.nextSeq,
		run:      run,
		drop:     drop,
	})
	p.queueMu.Unlock()

	p.incStat(func(s *Statistics) { s.Submitted++ })

	select {
	case p.notEmpty <- struct{}{}:
	default:
	}
	return nil
}

// scheduler 调度器
func (p *Pool) scheduler() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.notEmpty:
			p.dispatch()
		}
	}
}

func (p *Pool) dispatch() {
	for {
		if p.QueueLength() == 0 {
			return
		}

		// 先占用 worker 槽位再出队，未出队的任务在关闭时可以被丢弃
		select {
		case <-p.ctx.Done():
			return
		case p.slots <- struct{}{}:
		}

		p.queueMu.Lock()
		if p.queue.Len() == 0 {
			p.queueMu.Unlock()
			<-p.slots
			return
		}
		qt := heap.Pop(p.queue).(*queuedTask)
		p.queueMu.Unlock()

		run := qt.run
		err := p.pool.Submit(func() {
			p.incStat(func(s *Statistics) { s.Running++ })
			defer func() {
				p.incStat(func(s *Statistics) {
					s.Running--
					s.Completed++
				})
				<-p.slots
			}()
			run()
		})

		if err != nil {
			<-p.slots
			p.queueMu.Lock()
			heap.Push(p.queue, qt)
			p.queueMu.Unlock()
			p.logger.Warn("submit to ants failed, requeued", zap.Error(err))
			time.Sleep(10 * time.Millisecond)
			select {
			case p.notEmpty <- struct{}{}:
			default:
			}
			return
		}
	}
}

func (p *Pool) incStat(fn func(*Statistics)) {
	p.statsMu.Lock()
	fn(&p.stats)
	p.statsMu.Unlock()
}

// ============= 公共方法 =============

// QueueLength 获取排队任务数
func (p *Pool) QueueLength() int {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	return p.queue.Len()
}

// Stats 获取统计信息
func (p *Pool) Stats() Statistics {
	p.statsMu.Lock()
	s := p.stats
	p.statsMu.Unlock()
	s.Waiting = p.QueueLength()
	return s
}

// Shutdown 停止调度，未执行的任务以 ErrPoolClosed 结束，并等待运行中的任务完成
func (p *Pool) Shutdown(timeout time.Duration) error {
	p.cancel()
	p.wg.Wait()

	p.queueMu.Lock()
	pending := make([]*queuedTask, 0, p.queue.Len())
	for p.queue.Len() > 0 {
		pending = append(pending, heap.Pop(p.queue).(*queuedTask))
	}
	p.queueMu.Unlock()

	for _, qt := range pending {
		if qt.drop != nil {
			qt.drop()
		}
	}
	if len(pending) > 0 {
		p.incStat(func(s *Statistics) { s.Dropped += int64(len(pending)) })
		p.logger.Warn("worker pool shut down with pending tasks", zap.Int("dropped", len(pending)))
	}

	return p.pool.ReleaseTimeout(timeout)
}
