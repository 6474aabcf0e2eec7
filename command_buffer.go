package ecs

import "sync"

// CommandBuffer accumulates commands deferred during one dispatch (every
// system of a sync phase, or one async batch job), for application to the
// World only after that phase or batch finishes.
type CommandBuffer struct {
	queue []Command
}

// NewCommandBuffer returns an empty buffer.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{}
}

// Len reports the number of commands currently queued.
func (b *CommandBuffer) Len() int { return len(b.queue) }

// Push enqueues cmd; a nil command is ignored.
func (b *CommandBuffer) Push(cmd Command) {
	if cmd == nil {
		return
	}
	b.queue = append(b.queue, cmd)
}

// Drain detaches the queued commands and empties the buffer.
func (b *CommandBuffer) Drain() []Command {
	queue := b.queue
	b.queue = nil
	return queue
}

// Snapshot records the current queue length, for a later Restore.
func (b *CommandBuffer) Snapshot() int { return len(b.queue) }

// Restore discards any command pushed after snapshot was taken.
func (b *CommandBuffer) Restore(snapshot int) {
	if snapshot < 0 {
		snapshot = 0
	}
	if snapshot >= len(b.queue) {
		return
	}
	b.queue = b.queue[:snapshot]
}

// CommandBufferPool recycles CommandBuffers across dispatches so a busy
// frame doesn't allocate a fresh slice per system.
type CommandBufferPool struct {
	pool sync.Pool
}

// NewCommandBufferPool constructs a pool backed by sync.Pool.
func NewCommandBufferPool() *CommandBufferPool {
	p := &CommandBufferPool{}
	p.pool.New = func() any { return NewCommandBuffer() }
	return p
}

// Get borrows a buffer, empty unless the caller forgot to Put it cleared.
func (p *CommandBufferPool) Get() *CommandBuffer {
	return p.pool.Get().(*CommandBuffer)
}

// Put drains buf and returns it to the pool.
func (p *CommandBufferPool) Put(buf *CommandBuffer) {
	if buf == nil {
		return
	}
	buf.Drain()
	p.pool.Put(buf)
}
