package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"board-tiler/internal/app"
	"board-tiler/internal/config"
	"board-tiler/internal/fileprocessor"
	"board-tiler/internal/logger"
	"board-tiler/internal/workflow"

	"github.com/alecthomas/kong"
)

type CLI struct {
	Config string `help:"Path to config file" short:"f" default:"config.yaml"`
	Debug  bool   `help:"Enable debug logging"`
	DryRun bool   `help:"Upload to an in-memory board and keep the files in place"`
}

func main() {
	var cli CLI
	kong.Parse(&cli, kong.Name("board-uploader"), kong.Description("Import every image of import.local_dir onto the board."))

	// Load configuration
	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		logger.Error.Fatalf("Configuration error: %v", err)
	}
	if cfg.Import.LocalDir == "" {
		logger.Error.Fatal("Configuration error: import.local_dir is required")
	}
	logger.SetDebug(cli.Debug || cfg.Log.Debug)

	a, err := app.New(cfg, cli.DryRun, os.Stderr)
	if err != nil {
		logger.Error.Fatalf("Failed to initialize: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize file processor; dry runs never move files
	doneDir := cfg.Import.DoneDir
	if cli.DryRun {
		doneDir = ""
	}
	processor := fileprocessor.NewProcessor(cfg.Import.LocalDir, doneDir)

	// Scan for files
	files, err := processor.ScanFiles()
	if err != nil {
		logger.Error.Fatalf("Failed to scan files: %v", err)
	}
	if len(files) == 0 {
		logger.Info.Println("No files to process")
		return
	}
	logger.Info.Printf("Found %d files to process", len(files))

	stats := fileprocessor.Stats{}
	sizes := make(map[string]int64, len(files))
	sources := make([]workflow.Source, 0, len(files))
	for _, filename := range files {
		data, err := os.ReadFile(processor.GetFilePath(filename))
		if err != nil {
			stats.Processed++
			stats.Failed++
			fileprocessor.LogFileInfo(filename, 0, false, err)
			continue
		}
		sizes[filename] = int64(len(data))
		sources = append(sources, workflow.Source{Name: filename, Data: data})
	}

	rep, err := a.Runner.Import(ctx, sources)
	if rep == nil {
		logger.Error.Printf("Import failed: %v", err)
		stop()
		os.Exit(1)
	}

	// Move finished files, tagging sliced ones with their tile count
	for _, s := range rep.Sources {
		stats.Processed++
		if !s.OK() {
			err := s.Err
			if err == nil {
				err = fmt.Errorf("%d of %d widgets created, %d tiles skipped", s.Created, s.Widgets, s.Skipped)
			}
			fileprocessor.LogFileInfo(s.Name, sizes[s.Name], false, err)
			stats.Failed++
			continue
		}

		tag := ""
		if s.Widgets > 1 {
			tag = fmt.Sprintf("%dtiles", s.Widgets)
		}
		if err := processor.MoveFile(s.Name, tag); err != nil {
			logger.Warn.Printf("Uploaded %s but failed to move it: %v", s.Name, err)
			stats.Failed++
			continue
		}
		fileprocessor.LogFileInfo(s.Name, sizes[s.Name], true, nil)
		stats.Succeeded++
	}

	// Print final statistics
	fmt.Println("\n========== Upload Statistics ==========")
	fmt.Printf("Total files processed: %d\n", stats.Processed)
	fmt.Printf("Successfully uploaded:  %d\n", stats.Succeeded)
	fmt.Printf("Failed:                 %d\n", stats.Failed)
	fmt.Printf("Widgets created:        %d\n", len(rep.Created))
	fmt.Printf("Retries:                %d\n", rep.Upload.Retries)
	fmt.Println("=======================================")

	if stats.Failed > 0 || err != nil {
		stop()
		os.Exit(1)
	}
}
