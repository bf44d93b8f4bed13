// Package terminal shows the composed output of a scenario device in a
// terminal, next to the plane state and a live log pane. Cycles are played
// one key press at a time or automatically.
package terminal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/valerio/go-overlay/overlay/backend/terminal/render"
	"github.com/valerio/go-overlay/overlay/debug"
	"github.com/valerio/go-overlay/overlay/scenario"
)

const (
	minTermWidth  = 80
	minTermHeight = 24
	panelWidth    = 64
	stateHeight   = 12
	logCapacity   = 200
	defaultFPS    = 30
)

// Config holds viewer options.
type Config struct {
	Title       string
	FPS         int
	SnapshotDir string
	// AutoPlay advances one cycle per second without key presses.
	AutoPlay bool
	// LogLevel is the initial filter of the log pane.
	LogLevel slog.Level
}

// Viewer plays a scenario device in a tcell screen.
type Viewer struct {
	screen    tcell.Screen
	device    *scenario.Device
	config    Config
	running   bool
	logBuffer *render.LogBuffer
	logLevel  *slog.LevelVar
	prevLog   *slog.Logger

	next       int
	lastResult []string
	lastStep   time.Time
}

// New creates a viewer for d. Nothing is drawn until Init.
func New(d *scenario.Device, config Config) *Viewer {
	if config.FPS <= 0 {
		config.FPS = defaultFPS
	}
	if config.Title == "" {
		config.Title = "overlay"
	}
	level := new(slog.LevelVar)
	level.Set(config.LogLevel)
	return &Viewer{
		device:    d,
		config:    config,
		logBuffer: render.NewLogBuffer(logCapacity),
		logLevel:  level,
	}
}

// Init takes over the screen and routes logging into the log pane. A nil
// screen opens the controlling terminal.
func (v *Viewer) Init(screen tcell.Screen) error {
	if screen == nil {
		var err error
		screen, err = tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("failed to initialize terminal: %w", err)
		}
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}

	v.screen = screen
	v.running = true

	// the handler keeps everything; the pane filters by v.logLevel
	v.prevLog = slog.Default()
	slog.SetDefault(slog.New(render.NewLogBufferHandler(v.logBuffer, slog.LevelDebug)))
	slog.Info("Terminal viewer initialized", "cycles", v.device.Cycles())

	v.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	v.screen.Clear()
	return nil
}

// Cleanup restores the terminal and the previous logger.
func (v *Viewer) Cleanup() {
	if v.screen != nil {
		v.screen.Fini()
	}
	if v.prevLog != nil {
		slog.SetDefault(v.prevLog)
	}
}

// Run draws at the configured rate until the user quits or ctx is done.
func (v *Viewer) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(v.config.FPS))
	defer ticker.Stop()

	for v.running {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := v.Update(ctx, now); err != nil {
				return err
			}
		}
	}
	return nil
}

// Update processes pending input, advances autoplay and redraws.
func (v *Viewer) Update(ctx context.Context, now time.Time) error {
	for v.screen.HasPendingEvent() {
		switch ev := v.screen.PollEvent().(type) {
		case *tcell.EventKey:
			if err := v.handleKey(ctx, ev); err != nil {
				return err
			}
		case *tcell.EventResize:
			v.screen.Sync()
		}
	}

	if v.config.AutoPlay && v.running && now.Sub(v.lastStep) >= time.Second {
		if err := v.Step(ctx); err != nil {
			return err
		}
		v.lastStep = now
	}

	v.Draw()
	return nil
}

func (v *Viewer) handleKey(ctx context.Context, ev *tcell.EventKey) error {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		v.running = false
		return nil
	case tcell.KeyF12:
		v.snapshot()
		return nil
	case tcell.KeyRune:
	default:
		return nil
	}

	switch ev.Rune() {
	case 'q':
		v.running = false
	case 'n', ' ':
		return v.Step(ctx)
	case 'a':
		v.config.AutoPlay = !v.config.AutoPlay
		slog.Info("Autoplay toggled", "on", v.config.AutoPlay)
	case 's':
		v.snapshot()
	case '+', '=':
		v.changeLogLevel(1)
	case '-', '_':
		v.changeLogLevel(-1)
	}
	return nil
}

// Step commits the next cycle of the scenario. After the last cycle it
// does nothing.
func (v *Viewer) Step(ctx context.Context) error {
	if v.next >= v.device.Cycles() {
		return nil
	}
	c, err := v.device.Cycle(v.next)
	if err != nil {
		return err
	}
	res, err := v.device.Pipeline.Commit(ctx, c)
	if err != nil {
		return fmt.Errorf("cycle %d: %w", v.next, err)
	}
	if err := res.Err(); err != nil {
		slog.Warn("Cycle had rejected planes", "cycle", v.next, "error", err)
	}

	v.lastResult = debug.FormatResult(v.next, v.device.CycleName(v.next), res)
	v.next++
	return nil
}

// Done reports whether every cycle was played.
func (v *Viewer) Done() bool {
	return v.next >= v.device.Cycles()
}

func (v *Viewer) snapshot() {
	name := debug.SnapshotName(v.config.Title, v.next, "")
	if _, err := debug.SaveFramePNGToDir(v.device.Engine.Compose(), name, v.config.SnapshotDir); err != nil {
		slog.Error("Failed to save snapshot", "error", err)
	}
}

// changeLogLevel moves the pane filter one level; up shows more.
func (v *Viewer) changeLogLevel(direction int) {
	old := v.logLevel.Level()
	level := old - slog.Level(4*direction)
	if level < slog.LevelDebug || level > slog.LevelError {
		return
	}
	v.logLevel.Set(level)
	slog.Info("Log filter changed", "from", old, "to", level)
}

// Draw renders the whole screen and shows it.
func (v *Viewer) Draw() {
	termWidth, termHeight := v.screen.Size()
	v.screen.Clear()

	if termWidth < minTermWidth || termHeight < minTermHeight {
		msg := fmt.Sprintf("Terminal too small! Need at least %dx%d", minTermWidth, minTermHeight)
		v.drawText(0, termHeight/2, termWidth, msg, tcell.StyleDefault.Foreground(tcell.ColorRed))
		v.screen.Show()
		return
	}

	dividerX := termWidth - panelWidth - 1
	v.drawBorders(termWidth, termHeight, dividerX)
	v.drawFrame(dividerX, termHeight-2)

	panelX := dividerX + 2
	y := v.drawState(panelX, 1, termWidth-panelX)
	v.drawLogs(panelX, y+1, termWidth-panelX, termHeight-1)
	v.screen.Show()
}

func (v *Viewer) drawBorders(termWidth, termHeight, dividerX int) {
	borderStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)

	for y := 0; y < termHeight-1; y++ {
		v.screen.SetContent(dividerX, y, '│', nil, borderStyle)
	}

	title := fmt.Sprintf(" %s  cycle %d/%d ", v.config.Title, v.next, v.device.Cycles())
	v.drawText(1, 0, dividerX-1, title, titleStyle)
	v.drawText(dividerX+2, 0, termWidth-dividerX-2, " Planes ", titleStyle)

	help := " N/SPACE=next cycle A=autoplay S/F12=snapshot +/-=log filter Q/ESC=quit "
	v.drawText(0, termHeight-1, termWidth, help, borderStyle)
}

// drawFrame shows the composed output with half-block cells.
func (v *Viewer) drawFrame(cols, rows int) {
	img := render.FitCells(v.device.Engine.Compose(), cols, rows)
	b := img.Bounds()
	for row := 0; row < b.Dy()/2; row++ {
		for col := 0; col < b.Dx(); col++ {
			top, bottom := render.CellColors(img, col, row)
			style := tcell.StyleDefault.
				Foreground(tcell.NewRGBColor(int32(top.R), int32(top.G), int32(top.B))).
				Background(tcell.NewRGBColor(int32(bottom.R), int32(bottom.G), int32(bottom.B)))
			v.screen.SetContent(col, row+1, render.HalfBlock, nil, style)
		}
	}
}

func (v *Viewer) drawState(x, y, width int) int {
	data := debug.ExtractEngineData(v.device.Engine, v.device.Pipeline)
	style := tcell.StyleDefault.Foreground(tcell.ColorBlue)
	for _, line := range data.Lines() {
		v.drawText(x, y, width, line, style)
		y++
	}

	resultStyle := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	for i, line := range v.lastResult {
		if i >= stateHeight-len(data.Lines()) {
			break
		}
		v.drawText(x, y, width, line, resultStyle)
		y++
	}
	return y
}

func (v *Viewer) drawLogs(x, startY, width, endY int) {
	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	v.drawText(x, startY, width, fmt.Sprintf(" Logs [%s] ", render.LevelTag(v.logLevel.Level())), titleStyle)

	available := endY - startY - 1
	if available <= 0 {
		return
	}

	debugStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	infoStyle := tcell.StyleDefault.Foreground(tcell.ColorBlue)
	warnStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	errStyle := tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)

	for i, entry := range v.logBuffer.GetRecent(available, v.logLevel.Level()) {
		style := infoStyle
		switch entry.Level {
		case slog.LevelDebug:
			style = debugStyle
		case slog.LevelWarn:
			style = warnStyle
		case slog.LevelError:
			style = errStyle
		}
		v.drawText(x, startY+1+i, width, render.FormatLogEntry(entry), style)
	}
}

// drawText writes s clipped to width, ending in "..." when cut.
func (v *Viewer) drawText(x, y, width int, s string, style tcell.Style) {
	if width <= 0 {
		return
	}
	runes := []rune(s)
	if len(runes) > width {
		if width > 3 {
			runes = append(runes[:width-3], '.', '.', '.')
		} else {
			runes = runes[:width]
		}
	}
	for i, r := range runes {
		v.screen.SetContent(x+i, y, r, nil, style)
	}
}
