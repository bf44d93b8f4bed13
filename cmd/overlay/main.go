package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli"

	"github.com/valerio/go-overlay/overlay/backend/terminal"
	"github.com/valerio/go-overlay/overlay/debug"
	"github.com/valerio/go-overlay/overlay/scenario"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		slog.Error("Error running overlay", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "overlay"
	app.Description = "Plays display engine plane scenarios against a software model of the hardware"
	app.Usage = "overlay [global options] command <scenario.yaml>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn or error",
			Value: "info",
		},
		cli.BoolFlag{
			Name:  "no-scaler",
			Usage: "Build the engine without a scaler, whatever the scenario says",
		},
	}

	testOnly := cli.BoolFlag{
		Name:  "test-only",
		Usage: "Check every cycle without touching the hardware",
	}
	snapshotDir := cli.StringFlag{
		Name:  "snapshot-dir",
		Usage: "Directory to save frame snapshots (default: temp directory for run, working directory for view)",
	}

	app.Commands = []cli.Command{
		{
			Name:      "check",
			Usage:     "Dry run every cycle and print per plane verdicts",
			ArgsUsage: "<scenario.yaml>",
			Action:    runCheck,
		},
		{
			Name:      "run",
			Usage:     "Play every cycle headless and save a PNG of the output after each",
			ArgsUsage: "<scenario.yaml>",
			Flags: []cli.Flag{
				testOnly,
				snapshotDir,
				cli.BoolFlag{
					Name:  "dump-regs",
					Usage: "Print the register files after the last cycle",
				},
			},
			Action: runHeadless,
		},
		{
			Name:      "view",
			Usage:     "Play the scenario in the terminal",
			ArgsUsage: "<scenario.yaml>",
			Flags: []cli.Flag{
				snapshotDir,
				cli.IntFlag{
					Name:  "fps",
					Usage: "Redraw rate of the viewer",
					Value: 30,
				},
				cli.BoolFlag{
					Name:  "autoplay",
					Usage: "Advance one cycle per second",
				},
			},
			Action: runView,
		},
		{
			Name:  "table",
			Usage: "Update the snapshot table of a README from a snapshot directory",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "readme",
					Usage: "Path to README file to update in place",
					Value: "README.md",
				},
				cli.StringFlag{
					Name:  "snapshots",
					Usage: "Snapshots directory",
					Value: filepath.Join("scenarios", "snapshots"),
				},
				cli.IntFlag{
					Name:  "cols",
					Usage: "Number of columns per row",
					Value: 4,
				},
				cli.IntFlag{
					Name:  "width",
					Usage: "Image width in pixels",
					Value: 160,
				},
			},
			Action: runTable,
		},
	}
	return app
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func setupLogging(c *cli.Context) error {
	level, err := parseLevel(c.GlobalString("log-level"))
	if err != nil {
		return err
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	return nil
}

func loadDevice(c *cli.Context, testOnly bool) (*scenario.Device, error) {
	if c.NArg() == 0 {
		cli.ShowCommandHelp(c, c.Command.Name)
		return nil, errors.New("no scenario file provided")
	}
	f, err := scenario.Load(c.Args().First())
	if err != nil {
		return nil, err
	}
	return scenario.Build(f, scenario.Options{
		NoScaler: c.GlobalBool("no-scaler"),
		TestOnly: testOnly,
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
}

func runCheck(c *cli.Context) error {
	if err := setupLogging(c); err != nil {
		return err
	}
	d, err := loadDevice(c, true)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	rejected := 0
	err = d.Run(ctx, func(s scenario.Step) error {
		for _, line := range debug.FormatResult(s.Index, s.Name, s.Result) {
			fmt.Fprintln(c.App.Writer, line)
		}
		for _, p := range s.Result.Planes {
			if p.Err != nil {
				rejected++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Check completed", "scenario", d.Name(), "cycles", d.Cycles(), "rejected", rejected)
	return nil
}

func runHeadless(c *cli.Context) error {
	if err := setupLogging(c); err != nil {
		return err
	}
	d, err := loadDevice(c, c.Bool("test-only"))
	if err != nil {
		return err
	}

	dir := c.String("snapshot-dir")
	if dir == "" {
		dir, err = os.MkdirTemp("", "overlay-snapshots-*")
		if err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	slog.Info("Running headless mode", "scenario", d.Name(), "cycles", d.Cycles(), "snapshot_dir", dir)

	ctx, cancel := signalContext()
	defer cancel()

	err = d.Run(ctx, func(s scenario.Step) error {
		for _, line := range debug.FormatResult(s.Index, s.Name, s.Result) {
			fmt.Fprintln(c.App.Writer, line)
		}
		name := debug.SnapshotName(d.Name(), s.Index, s.Name)
		_, err := debug.SaveFramePNGToDir(d.Engine.Compose(), name, dir)
		return err
	})
	if err != nil {
		return err
	}

	if c.Bool("dump-regs") {
		if err := debug.WriteRegisters(c.App.Writer, d.Regs); err != nil {
			return err
		}
		if d.ScalerRegs != nil {
			if err := debug.WriteRegisters(c.App.Writer, d.ScalerRegs); err != nil {
				return err
			}
		}
	}

	for _, line := range debug.ExtractEngineData(d.Engine, d.Pipeline).Lines() {
		fmt.Fprintln(c.App.Writer, line)
	}
	slog.Info("Headless execution completed", "cycles", d.Cycles(), "snapshots_saved_to", dir)
	return nil
}

func runView(c *cli.Context) error {
	level, err := parseLevel(c.GlobalString("log-level"))
	if err != nil {
		return err
	}
	d, err := loadDevice(c, false)
	if err != nil {
		return err
	}

	v := terminal.New(d, terminal.Config{
		Title:       d.Name(),
		FPS:         c.Int("fps"),
		SnapshotDir: c.String("snapshot-dir"),
		AutoPlay:    c.Bool("autoplay"),
		LogLevel:    level,
	})
	if err := v.Init(nil); err != nil {
		return err
	}
	defer v.Cleanup()

	ctx, cancel := signalContext()
	defer cancel()
	return v.Run(ctx)
}

func runTable(c *cli.Context) error {
	dir := c.String("snapshots")
	readme := c.String("readme")

	// links are relative to the README
	link, err := filepath.Rel(filepath.Dir(readme), dir)
	if err != nil {
		link = dir
	}
	table, err := debug.SnapshotTable(dir, filepath.ToSlash(link), c.Int("cols"), c.Int("width"))
	if err != nil {
		return err
	}
	return debug.UpdateSnapshotSection(readme, table)
}
