package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the Lattice ASCII banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  _          _   _   _          ", "#22d3ee"},
		{" | |    __ _| |_| |_(_) ___ ___ ", "#38bdf8"},
		{" | |   / _` | __| __| |/ __/ _ \\", "#60a5fa"},
		{" | |__| (_| | |_| |_| | (_|  __/", "#818cf8"},
		{" |_____\\__,_|\\__|\\__|_|\\___\\___|", "#a78bfa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Fprintln(w, termenv.String("  v"+v).Faint())
	}
	fmt.Fprintln(w)
}
