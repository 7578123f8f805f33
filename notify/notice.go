package notify

import (
	"sync"
	"time"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is a transient, user-facing message (a toast).
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// NoticeSink receives notices. Implementations must not block.
type NoticeSink interface {
	Notify(n Notice)
}

// NoticeFunc adapts a function to NoticeSink.
type NoticeFunc func(Notice)

func (f NoticeFunc) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard NoticeSink = NoticeFunc(func(Notice) {})

// DefaultNoticeCapacity bounds a NoticeBuffer.
const DefaultNoticeCapacity = 50

// NoticeBuffer keeps the most recent notices until the presentation layer
// drains them. Each notice is shown once.
type NoticeBuffer struct {
	mu    sync.Mutex
	items []Notice
	max   int
}

func NewNoticeBuffer(max int) *NoticeBuffer {
	if max <= 0 {
		max = DefaultNoticeCapacity
	}
	return &NoticeBuffer{max: max}
}

// Notify appends n, dropping the oldest notice when full.
func (b *NoticeBuffer) Notify(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n.At.IsZero() {
		n.At = time.Now()
	}
	b.items = append(b.items, n)
	if len(b.items) > b.max {
		b.items = b.items[len(b.items)-b.max:]
	}
}

// Drain returns pending notices and empties the buffer.
func (b *NoticeBuffer) Drain() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.items
	b.items = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}

func (b *NoticeBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
