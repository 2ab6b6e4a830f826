// Package snowflake issues time-ordered 64-bit ledger ids.
//
// Layout: 41 bits of milliseconds since 2025-01-01 UTC, 10 bits of node id,
// 12 bits of per-millisecond sequence.
package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	epoch int64 = 1735689600000

	nodeBits     = 10
	sequenceBits = 12

	maxNode     = (1 << nodeBits) - 1
	maxSequence = (1 << sequenceBits) - 1

	timeShift = nodeBits + sequenceBits
	nodeShift = sequenceBits
)

var (
	ErrInvalidNode    = errors.New("snowflake: node must be between 0 and 1023")
	ErrClockMovedBack = errors.New("snowflake: clock moved backwards")
)

// Generator issues time-ordered 63-bit ids for one node.
type Generator struct {
	mu       sync.Mutex
	node     int64
	sequence int64
	last     int64
	now      func() int64
}

// NewGenerator creates a generator for node.
func NewGenerator(node int64) (*Generator, error) {
	if node < 0 || node > maxNode {
		return nil, ErrInvalidNode
	}
	return &Generator{node: node, now: func() int64 { return time.Now().UnixMilli() }}, nil
}

// Next returns a new id, waiting for the next millisecond when the
// sequence for the current one is spent.
func (g *Generator) Next() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now()
	if ms < g.last {
		return 0, ErrClockMovedBack
	}
	if ms == g.last {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			for ms <= g.last {
				time.Sleep(100 * time.Microsecond)
				ms = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.last = ms

	return ((ms - epoch) << timeShift) | (g.node << nodeShift) | g.sequence, nil
}

// Time reports when id was issued.
func Time(id int64) time.Time {
	return time.UnixMilli((id >> timeShift) + epoch)
}

// Node reports which node issued id.
func Node(id int64) int64 {
	return (id >> nodeShift) & maxNode
}
