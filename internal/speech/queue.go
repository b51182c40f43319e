package speech

import (
	"sync"
	"time"
)

// requestQueue 无界线程安全 FIFO，任意 goroutine 写入，仅 Worker 读取
type requestQueue struct {
	mu    sync.Mutex
	items []WorkItem
	wake  chan struct{}
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		wake: make(chan struct{}, 1),
	}
}

// Enqueue 非阻塞入队，保持跨生产者的全局 FIFO 顺序
func (q *requestQueue) Enqueue(item WorkItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// DequeueWithTimeout 最多阻塞 timeout，返回队首项或超时
func (q *requestQueue) DequeueWithTimeout(timeout time.Duration) (WorkItem, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-timer.C:
			return nil, false
		}
	}
}

// DrainAll 丢弃所有排队中的 Speak/Index 项
// 已入队的关停信号保留，取消不应吃掉 shutdown
func (q *requestQueue) DrainAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := 0
	kept := q.items[:0]
	for _, item := range q.items {
		if _, ok := item.(shutdownItem); ok {
			kept = append(kept, item)
			continue
		}
		dropped++
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	return dropped
}

// Len 当前排队项数，只用于统计
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
