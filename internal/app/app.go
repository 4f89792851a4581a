// Package app turns a loaded configuration into a ready workflow runner.
package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"board-tiler/internal/board"
	"board-tiler/internal/board/memboard"
	"board-tiler/internal/board/miro"
	"board-tiler/internal/colorclass"
	"board-tiler/internal/config"
	"board-tiler/internal/dialer"
	"board-tiler/internal/fileprocessor"
	"board-tiler/internal/logger"
	"board-tiler/internal/notify"
	"board-tiler/internal/slicer"
	"board-tiler/internal/ui"
	"board-tiler/internal/workflow"
)

type App struct {
	Runner   *workflow.Runner
	Board    board.Board
	Telegram *notify.Telegram // nil when no bot is configured
}

// New connects to the configured board, or to an empty in-memory board when
// dryRun is set. Progress bars are drawn on progressOut.
func New(cfg *config.Config, dryRun bool, progressOut io.Writer) (*App, error) {
	a := &App{}

	if dryRun || cfg.Board.Provider == "memory" {
		logger.Info.Println("Using an in-memory board, nothing is sent to the host")
		a.Board = memboard.New(cfg.Viewport())
	} else {
		mc, err := miro.New(cfg.Miro())
		if err != nil {
			return nil, fmt.Errorf("failed to create board client: %w", err)
		}
		a.Board = mc
	}

	notifiers := notify.Multi{notify.Console{}}
	if t := cfg.Notify.Telegram; t.Token != "" {
		hc, err := dialer.NewHTTPClient(t.Proxy, cfg.Board.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram client: %w", err)
		}
		a.Telegram, err = notify.NewTelegram(notify.TelegramConfig{Token: t.Token, ChatID: t.ChatID, Client: hc})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, a.Telegram)
	}

	progress := func(title string, total int) ui.Sink {
		if cfg.Log.Progress == "log" {
			return ui.LogSink{}
		}
		return ui.NewProgressBar(progressOut, title, total)
	}

	a.Runner = workflow.New(a.Board, cfg.Workflow(),
		workflow.WithNotifier(notifiers),
		workflow.WithClassifier(colorclass.New(cfg.Classifier())),
		workflow.WithSlicer(slicer.New(cfg.Slicer())),
		workflow.WithScheduler(cfg.Scheduler()),
		workflow.WithProgress(progress),
	)
	return a, nil
}

// LoadSources reads image files. A directory contributes its image files in
// name order.
func LoadSources(paths []string) ([]workflow.Source, error) {
	var sources []workflow.Source
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, err
			}
			sources = append(sources, workflow.Source{Name: filepath.Base(p), Data: data})
			continue
		}

		proc := fileprocessor.NewProcessor(p, "")
		files, err := proc.ScanFiles()
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			data, err := os.ReadFile(proc.GetFilePath(f))
			if err != nil {
				return nil, err
			}
			sources = append(sources, workflow.Source{Name: f, Data: data})
		}
	}
	return sources, nil
}
