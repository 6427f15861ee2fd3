// Package ioctl implements the port-mapped I/O controller: per-port
// input/output FIFOs, a tick-indexed event schedule, and the single
// pending-IRQ latch.
package ioctl

import "github.com/yasnov/algstack/internal/isa"

// Event is one scheduled input delivery: at Tick, Value arrives on
// Port.
type Event struct {
	Tick  int
	Port  isa.Port
	Value uint32
}

// Controller holds the port queues and the interrupt latch described
// in SPEC_FULL.md §4.2.
type Controller struct {
	in       map[isa.Port][]uint32
	out      map[isa.Port][]uint32
	schedule map[int][]Event

	pendingIRQ    isa.Port
	pendingIRQSet bool
}

// New builds a Controller preloaded with the given schedule. Multiple
// events may share a tick; the first one in schedule order that
// arrives while no IRQ is pending becomes the pending IRQ for that
// tick (see OnTick).
func New(schedule []Event) *Controller {
	c := &Controller{
		in:       make(map[isa.Port][]uint32),
		out:      make(map[isa.Port][]uint32),
		schedule: make(map[int][]Event),
	}
	for _, ev := range schedule {
		c.schedule[ev.Tick] = append(c.schedule[ev.Tick], ev)
	}
	return c
}

// OnTick delivers every event scheduled for tick t into its port's
// input queue, and latches the first such event's port as the
// pending IRQ if none is currently latched.
func (c *Controller) OnTick(t int) {
	for _, ev := range c.schedule[t] {
		c.in[ev.Port] = append(c.in[ev.Port], ev.Value)
		if !c.pendingIRQSet {
			c.pendingIRQ = ev.Port
			c.pendingIRQSet = true
		}
	}
}

// IRQPending reports the latched IRQ port, if any.
func (c *Controller) IRQPending() (port isa.Port, ok bool) {
	return c.pendingIRQ, c.pendingIRQSet
}

// AckIRQ clears the pending IRQ latch.
func (c *Controller) AckIRQ() {
	c.pendingIRQSet = false
}

// ReadPort pops the head of port's input queue, or 0 if empty.
func (c *Controller) ReadPort(port isa.Port) uint32 {
	q := c.in[port]
	if len(q) == 0 {
		return 0
	}
	c.in[port] = q[1:]
	return q[0]
}

// WritePort appends value to port's output queue.
func (c *Controller) WritePort(port isa.Port, value uint32) {
	c.out[port] = append(c.out[port], value)
}

// OutDump snapshots every port's output queue.
func (c *Controller) OutDump() map[isa.Port][]uint32 {
	dump := make(map[isa.Port][]uint32, len(c.out))
	for p, buf := range c.out {
		cp := make([]uint32, len(buf))
		copy(cp, buf)
		dump[p] = cp
	}
	return dump
}
