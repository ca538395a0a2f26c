package doctor

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Render prints one line per check. Failed optional checks are yellow,
// failed required checks red.
func Render(w io.Writer, res Result, colorize bool) {
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed, color.Bold)
	for _, c := range []*color.Color{ok, warn, bad} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	for _, c := range res.Checks {
		mark, col := "ok  ", ok
		switch {
		case !c.OK && c.Required:
			mark, col = "FAIL", bad
		case !c.OK:
			mark, col = "warn", warn
		}
		_, _ = col.Fprintf(w, "[%s]", mark)
		if c.Message != "" {
			_, _ = fmt.Fprintf(w, " %s: %s\n", c.ID, c.Message)
		} else {
			_, _ = fmt.Fprintf(w, " %s\n", c.ID)
		}
	}
	if res.OK {
		_, _ = ok.Fprintln(w, "doctor: ready")
	} else {
		_, _ = bad.Fprintln(w, "doctor: not ready")
	}
}
