package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"board-tiler/internal/app"
	"board-tiler/internal/config"
	"board-tiler/internal/logger"
	"board-tiler/internal/util"
	"board-tiler/internal/workflow"

	"github.com/alecthomas/kong"
)

type CLI struct {
	Config string `help:"Path to config file" short:"f" default:"config.yaml"`
	Debug  bool   `help:"Enable debug logging"`
	DryRun bool   `help:"Work on an in-memory board instead of the configured one"`

	Columns int    `help:"Override layout columns" short:"c"`
	Sort    string `help:"Override sort mode (number or color)" short:"s"`

	Arrange  ArrangeCmd  `cmd:"" help:"Arrange the selected images into a grid"`
	Classify ClassifyCmd `cmd:"" help:"Prefix the selected images with their color code"`
	Import   ImportCmd   `cmd:"" help:"Upload local images as a grid around the viewport"`
	Plan     PlanCmd     `cmd:"" help:"Show where local images would go without uploading"`
}

type ArrangeCmd struct{}

type ClassifyCmd struct{}

type ImportCmd struct {
	Paths []string `arg:"" name:"path" help:"Image files or directories"`
}

type PlanCmd struct {
	Paths       []string `arg:"" name:"path" help:"Image files or directories"`
	Preview     string   `help:"Write a JPEG preview of the layout to this file" short:"p"`
	PreviewSize int      `help:"Longest side of the preview in pixels" default:"2048"`
	Send        bool     `help:"Send the preview to the configured Telegram chat"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("board-tiler"),
		kong.Description("Arrange, color-code and import images on a whiteboard."),
		kong.UsageOnError(),
	)

	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		logger.Error.Fatal(err)
	}
	if err := cli.applyOverrides(cfg); err != nil {
		logger.Error.Fatal(err)
	}
	logger.SetDebug(cli.Debug || cfg.Log.Debug)

	a, err := app.New(cfg, cli.DryRun, os.Stderr)
	if err != nil {
		logger.Error.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch kctx.Command() {
	case "arrange":
		_, err = a.Runner.Arrange(ctx)
	case "classify":
		var res workflow.ClassifyResult
		if res, err = a.Runner.Classify(ctx); err == nil && res.Failed > 0 {
			err = fmt.Errorf("%d items could not be color-coded", res.Failed)
		}
	case "import <path>":
		err = cli.Import.Run(ctx, a)
	case "plan <path>":
		err = cli.Plan.Run(ctx, a)
	default:
		err = fmt.Errorf("unknown command %q", kctx.Command())
	}
	if err != nil {
		logger.Debug.Printf("%s: %v", kctx.Command(), err)
		stop()
		os.Exit(1)
	}
}

func (c *CLI) applyOverrides(cfg *config.Config) error {
	if c.Columns != 0 {
		cfg.Layout.Columns = c.Columns
	}
	if c.Sort != "" {
		cfg.Layout.Sort = c.Sort
	}
	if err := cfg.Layout.Validate(); err != nil {
		return fmt.Errorf("invalid layout flags: %w", err)
	}
	return nil
}

func (i *ImportCmd) Run(ctx context.Context, a *app.App) error {
	sources, err := app.LoadSources(i.Paths)
	if err != nil {
		logger.Error.Printf("Failed to read files: %v", err)
		return err
	}
	rep, err := a.Runner.Import(ctx, sources)
	if err != nil {
		return err
	}
	for _, s := range rep.Sources {
		if !s.OK() {
			logger.Warn.Printf("%s: %d of %d widgets created: %v", s.Name, s.Created, s.Widgets, s.Err)
		}
	}
	if rep.Failed > 0 || rep.Rejected() > 0 {
		return fmt.Errorf("%d uploads failed, %d files rejected", rep.Failed, rep.Rejected())
	}
	return nil
}

func (p *PlanCmd) Run(ctx context.Context, a *app.App) error {
	sources, err := app.LoadSources(p.Paths)
	if err != nil {
		logger.Error.Printf("Failed to read files: %v", err)
		return err
	}
	plan, err := a.Runner.PlanImport(ctx, sources)
	if err != nil {
		return err
	}

	fmt.Printf("Grid: %d rows, %.0f x %.0f board units, %d gaps\n", plan.Grid.Rows, plan.Grid.Width, plan.Grid.Height, plan.Holes)
	for _, pl := range plan.Placements {
		tiles := "whole"
		if pl.Plan != nil {
			tiles = pl.Plan.String()
		}
		fmt.Printf("  %-32s %5dx%-5d at (%.0f, %.0f) %.0fx%.0f  %s\n",
			pl.Title, pl.Width, pl.Height, pl.Rect.Center().X, pl.Rect.Center().Y, pl.Rect.W, pl.Rect.H, tiles)
	}
	for _, rj := range plan.Rejected {
		fmt.Printf("  %-32s rejected: %v\n", rj.Name, rj.Err)
	}

	if p.Preview == "" && !p.Send {
		return nil
	}
	var buf bytes.Buffer
	if err := plan.RenderPreview(&buf, p.PreviewSize); err != nil {
		logger.Error.Printf("Failed to render preview: %v", err)
		return err
	}
	if p.Preview != "" {
		if err := os.WriteFile(p.Preview, buf.Bytes(), 0o644); err != nil {
			logger.Error.Printf("Failed to write preview: %v", err)
			return err
		}
		logger.Info.Printf("Preview written to %s (%s)", p.Preview, util.FormatBytesToHumanReadable(int64(buf.Len())))
	}
	if p.Send {
		if a.Telegram == nil {
			err := fmt.Errorf("--send needs notify.telegram in the config")
			logger.Error.Println(err)
			return err
		}
		caption := fmt.Sprintf("Layout of %d images, %d rows", len(plan.Placements), plan.Grid.Rows)
		msgID, err := a.Telegram.SendPhoto(ctx, buf.Bytes(), caption)
		if err != nil {
			logger.Error.Println(err)
			return err
		}
		logger.Info.Printf("Preview sent (message %d)", msgID)
	}
	return nil
}
