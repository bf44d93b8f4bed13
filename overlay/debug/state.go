package debug

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/valerio/go-overlay/overlay/commit"
	"github.com/valerio/go-overlay/overlay/engine"
	"github.com/valerio/go-overlay/overlay/regs"
)

// EngineData is a snapshot of what an engine and its pipeline show.
type EngineData struct {
	Engine          int
	Width           int
	Height          int
	Layers          []engine.LayerStatus
	HasScaler       bool
	ScalerActive    bool
	TeardownPending bool
	Teardowns       int
	Active          uint64
	SpriteMask      uint64
	SpritePool      bool
}

type activeReporter interface {
	Active() bool
}

// ExtractEngineData collects the current state. p may be nil.
func ExtractEngineData(e *engine.Engine, p *commit.Pipeline) *EngineData {
	cfg := e.Config()
	data := &EngineData{
		Engine:          cfg.ID,
		Width:           cfg.Width,
		Height:          cfg.Height,
		Layers:          e.Layers(),
		HasScaler:       e.HasScaler(),
		TeardownPending: e.TeardownPending(),
		Teardowns:       e.Teardowns(),
		SpriteMask:      e.SpriteMask(),
	}
	if sc, ok := e.Scaler().(activeReporter); ok {
		data.ScalerActive = sc.Active()
	}
	if p != nil {
		data.Active = p.Active()
		data.SpritePool = p.SpritePoolEnabled()
	}
	return data
}

// ActiveSprites counts the sprite planes showing a buffer.
func (d *EngineData) ActiveSprites() int {
	return bits.OnesCount64(d.Active & d.SpriteMask)
}

// FormatSummary returns a one line overview.
func (d *EngineData) FormatSummary() string {
	scaler := "absent"
	switch {
	case d.ScalerActive:
		scaler = "active"
	case d.HasScaler:
		scaler = "idle"
	}
	pool := "OFF"
	if d.SpritePool {
		pool = "ON"
	}
	return fmt.Sprintf("Engine %d %dx%d | Scaler: %s (teardowns %d) | Sprites: %d [%s]",
		d.Engine, d.Width, d.Height, scaler, d.Teardowns, d.ActiveSprites(), pool)
}

// FormatLayer describes one layer on a single line.
func FormatLayer(s engine.LayerStatus) string {
	if !s.Enabled {
		return fmt.Sprintf("Layer %d: OFF", s.Layer)
	}
	path := "direct"
	if s.Scaled {
		path = "scaler"
	}
	// scaled layers read the scaler output, not a buffer
	fb := "-"
	if s.FB >= 0 {
		fb = fmt.Sprint(s.FB)
	}
	return fmt.Sprintf("Layer %d: fb=%s %s z=%d a=0x%04X %s -> %s [%s]",
		s.Layer, fb, s.Format, s.Zpos, s.Alpha, s.Src.Whole(), s.Dst, path)
}

// Lines renders the snapshot for a text panel.
func (d *EngineData) Lines() []string {
	lines := []string{d.FormatSummary()}
	for _, l := range d.Layers {
		lines = append(lines, FormatLayer(l))
	}
	if d.TeardownPending {
		lines = append(lines, "Scaler teardown pending")
	}
	return lines
}

// FormatResult describes the outcome of one commit cycle, one line per
// plane request.
func FormatResult(index int, name string, res commit.Result) []string {
	header := fmt.Sprintf("Cycle %d", index)
	if name != "" {
		header += ": " + name
	}
	lines := []string{header}
	for _, p := range res.Planes {
		if p.Err != nil {
			lines = append(lines, fmt.Sprintf("  slot %2d  REJECTED  %v", p.Slot, p.Err))
			continue
		}
		verdict := "off"
		if p.Enabled {
			verdict = "on"
		}
		lines = append(lines, fmt.Sprintf("  slot %2d  OK %-3s     uses_scaler=%t", p.Slot, verdict, p.UsesScaler))
	}
	return lines
}

// WriteRegisters dumps the current register values of a block.
func WriteRegisters(w io.Writer, m *regs.Memory) error {
	if _, err := fmt.Fprintf(w, "[%s]\n", m.Name()); err != nil {
		return err
	}
	for _, v := range m.Values() {
		if _, err := fmt.Fprintf(w, "  %s\n", v); err != nil {
			return err
		}
	}
	return nil
}
