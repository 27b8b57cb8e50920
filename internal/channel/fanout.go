package channel

import (
	"sync"
	"sync/atomic"
)

// =============================================================================
// 📡 事件广播
// =============================================================================

// Fanout 将单一事件源复制给任意数量的订阅者。辩论引擎的进度
// 通道只有一个出口,HTTP 层要同时喂多个 SSE 客户端时用它分发。
//
// 广播永不阻塞:订阅者缓冲满时丢弃其最旧事件,迟钝的客户端
// 只会丢事件,不会拖慢其他订阅者。
type Fanout[T any] struct {
	mu      sync.Mutex
	subs    map[int]chan T
	nextID  int
	buffer  int
	closed  bool
	dropped atomic.Int64
}

// NewFanout 创建广播器。buffer 是每个订阅者的事件缓冲大小。
func NewFanout[T any](buffer int) *Fanout[T] {
	if buffer <= 0 {
		buffer = 64
	}
	return &Fanout[T]{
		subs:   make(map[int]chan T),
		buffer: buffer,
	}
}

// Run 从 src 持续抽取并广播,直到 src 关闭,然后关闭全部订阅。
// 通常在独立 goroutine 中调用。
func (f *Fanout[T]) Run(src <-chan T) {
	for v := range src {
		f.Publish(v)
	}
	f.Close()
}

// Publish 向所有订阅者广播一个值。
func (f *Fanout[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	for _, ch := range f.subs {
		f.send(ch, v)
	}
}

// send 向单个订阅者投递。持有 f.mu 时只有本方法写入该通道,
// 所以丢最旧后重试必然在两轮内送达。
func (f *Fanout[T]) send(ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		// 缓冲满:丢最旧,腾出位置后重试
		select {
		case <-ch:
			f.dropped.Add(1)
		default:
		}
	}
}

// Subscribe 注册一个订阅者,返回其事件通道与退订函数。
// 退订函数幂等,退订后通道会被关闭。
func (f *Fanout[T]) Subscribe() (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan T, f.buffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if sub, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Close 关闭广播器与全部订阅通道。之后的 Publish 为空操作,
// Subscribe 返回已关闭的通道。
func (f *Fanout[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

// Subscribers 返回当前订阅者数量。
func (f *Fanout[T]) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Dropped 返回因订阅者缓冲满而丢弃的事件总数。
func (f *Fanout[T]) Dropped() int64 {
	return f.dropped.Load()
}
