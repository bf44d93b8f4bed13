package regs

import (
	"fmt"
	"sort"
	"sync"
)

// Map is the register I/O primitive of one hardware block.
type Map interface {
	Read(reg uint32) uint32
	Write(reg, value uint32)
	// Update replaces the bits selected by mask with value.
	Update(reg, mask, value uint32)
}

// Write records one register write.
type Write struct {
	Reg   uint32
	Value uint32
}

func (w Write) String() string {
	return fmt.Sprintf("0x%03X <- 0x%08X", w.Reg, w.Value)
}

// Memory is an in-memory register file. It keeps a log of every write so
// that the order in which configuration became visible can be inspected.
type Memory struct {
	name string

	mu     sync.Mutex
	values map[uint32]uint32
	log    []Write
}

// NewMemory creates an empty register file.
func NewMemory(name string) *Memory {
	return &Memory{
		name:   name,
		values: make(map[uint32]uint32),
	}
}

func (m *Memory) Read(reg uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[reg]
}

func (m *Memory) Write(reg, value uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[reg] = value
	m.log = append(m.log, Write{Reg: reg, Value: value})
}

func (m *Memory) Update(reg, mask, value uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := (m.values[reg] &^ mask) | (value & mask)
	m.values[reg] = v
	m.log = append(m.log, Write{Reg: reg, Value: v})
}

// Name identifies the block in logs.
func (m *Memory) Name() string {
	return m.name
}

// Log returns a copy of the write log.
func (m *Memory) Log() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Write, len(m.log))
	copy(out, m.log)
	return out
}

// Writes returns how many times reg was written.
func (m *Memory) Writes(reg uint32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, w := range m.log {
		if w.Reg == reg {
			n++
		}
	}
	return n
}

// ResetLog drops the write log but keeps register values.
func (m *Memory) ResetLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = m.log[:0]
}

// Values returns the current value of every register written so far,
// ordered by address.
func (m *Memory) Values() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Write, 0, len(m.values))
	for reg, v := range m.values {
		out = append(out, Write{Reg: reg, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reg < out[j].Reg })
	return out
}
