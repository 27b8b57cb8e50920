package debate

import (
	"sync"
	"time"

	"github.com/BaSui01/debateflow/types"
)

// Hub 有界进度事件缓冲,实现 backend.EventSink。发布永不阻塞:
// 缓冲满时丢弃最旧事件,迟钝的订阅者只会丢事件,不会拖慢辩论。
type Hub struct {
	mu     sync.Mutex
	ch     chan types.ProgressEvent
	closed bool
}

// NewHub 创建事件缓冲
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultConfig().EventBuffer
	}
	return &Hub{ch: make(chan types.ProgressEvent, buffer)}
}

// Publish 投递一个进度事件,缺失的时间戳补当前时间。关闭后的
// 投递静默丢弃。
func (h *Hub) Publish(ev types.ProgressEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for {
		select {
		case h.ch <- ev:
			return
		default:
		}
		// 缓冲满:丢最旧,腾出位置后重试
		select {
		case <-h.ch:
		default:
		}
	}
}

// Events 返回订阅通道
func (h *Hub) Events() <-chan types.ProgressEvent {
	return h.ch
}

// Close 关闭事件通道。已缓冲的事件仍可被读完,读端随后观察到
// 通道关闭;幂等。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.ch)
}
