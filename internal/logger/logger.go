package logger

import (
	"io"
	"log"
	"os"

	"github.com/fatih/color"
)

var (
	Info  = log.New(os.Stdout, color.GreenString("[INFO] "), log.LstdFlags|log.Lmsgprefix)
	Warn  = log.New(os.Stdout, color.YellowString("[WARN] "), log.LstdFlags|log.Lmsgprefix)
	Error = log.New(os.Stderr, color.RedString("[ERROR] "), log.LstdFlags|log.Lmsgprefix)
	// Debug is silent until SetDebug(true)
	Debug = log.New(io.Discard, color.CyanString("[DEBUG] "), log.LstdFlags|log.Lmsgprefix)
)

// SetDebug switches debug output on or off.
func SetDebug(enabled bool) {
	if enabled {
		Debug.SetOutput(os.Stdout)
		return
	}
	Debug.SetOutput(io.Discard)
}

// SetOutput redirects every level to w. Used by tests and --quiet runs.
func SetOutput(w io.Writer) {
	Info.SetOutput(w)
	Warn.SetOutput(w)
	Error.SetOutput(w)
}
