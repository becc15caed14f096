package workerpool

import (
	"context"
	"log/slog"
	"sync"
)

// Task 定义任务函数类型
type Task func()

// keyedTask 携带去重键的任务
type keyedTask struct {
	key  string
	task Task
}

// Pool 后台刷新任务池
// 支持按 key 去重：同一 key 的任务在排队期间重复提交会被合并，
// 推送风暴下只触发一次刷新
type Pool struct {
	workers   int
	taskQueue chan keyedTask
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

// New 创建任务池
// workers: worker 数量
// queueSize: 任务队列大小
func New(workers int, queueSize int, logger *slog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		workers:   workers,
		taskQueue: make(chan keyedTask, queueSize),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
		pending:   make(map[string]struct{}),
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker(i)
	}

	pool.logger.Info("Worker pool started",
		"workers", workers,
		"queue_size", queueSize)

	return pool
}

// worker 工作协程
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case item, ok := <-p.taskQueue:
			if !ok {
				return
			}

			p.clearPending(item.key)

			// 执行任务，捕获 panic
			func() {
				defer func() {
					if r := recover(); r != nil {
						p.logger.Error("Task panic recovered",
							"worker_id", id,
							"key", item.key,
							"panic", r)
					}
				}()
				item.task()
			}()
		}
	}
}

func (p *Pool) clearPending(key string) {
	if key == "" {
		return
	}
	p.mu.Lock()
	delete(p.pending, key)
	p.mu.Unlock()
}

// markPending 标记 key 已入队，已在队列中返回 false
func (p *Pool) markPending(key string) bool {
	if key == "" {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pending[key]; ok {
		return false
	}
	p.pending[key] = struct{}{}
	return true
}

// Submit 提交任务，同一 key 排队期间重复提交会被合并
// 队列满或已关闭时返回 false
func (p *Pool) Submit(key string, task Task) bool {
	select {
	case <-p.ctx.Done():
		return false
	default:
	}

	if !p.markPending(key) {
		// 同 key 任务已在排队，合并本次提交
		return true
	}

	select {
	case p.taskQueue <- keyedTask{key: key, task: task}:
		return true
	default:
		p.clearPending(key)
		return false
	}
}

// Shutdown 优雅关闭任务池
// 等待所有已入队任务完成
func (p *Pool) Shutdown() {
	p.cancel()
	close(p.taskQueue)
	p.wg.Wait()
	p.logger.Info("Worker pool shutdown completed")
}
