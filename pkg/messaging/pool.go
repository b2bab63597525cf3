package messaging

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed はCloseされたプールにタスクを投入した場合のエラー。
var ErrPoolClosed = errors.New("worker pool is closed")

// Pool は固定数のワーカーと固定長のキューを持つワーカープール。
// キューが満杯の間、Submitは空きができるまでブロックする。
type Pool struct {
	// tasks はワーカーが取り出すタスクのキュー。
	tasks chan func()
	// done はCloseの開始を待機中のSubmitへ通知する。
	done chan struct{}
	// mu はtasksのクローズとSubmitの送信を排他する。
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
}

// NewPool は新しいワーカープールを生成し、ワーカーを起動する。
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

// worker はキューが閉じられるまでタスクを実行する。
func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit はタスクをキューに投入する。
// キューが満杯の場合はブロックし、ctxが終了した場合はctx.Err()を返す。
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close は新規の投入を止め、キューに残ったタスクの完了を待つ。
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.done)
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
		p.wg.Wait()
	})
}
