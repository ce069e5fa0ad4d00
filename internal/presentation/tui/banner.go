package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var bannerLines = []string{
	"      _                        _          ",
	"  ___| |_ ___ _ ____      _(_)___  ___ ",
	" / __| __/ _ \\ '_ \\ \\ /\\ / / / __|/ _ \\",
	" \\__ \\ ||  __/ |_) \\ V  V /| \\__ \\  __/",
	" |___/\\__\\___| .__/ \\_/\\_/ |_|___/\\___|",
	"             |_|                        ",
}

var bannerColors = []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9", "#f472b6", "#fb7185"}

// minBannerWidth is the narrowest terminal the art fits in.
const minBannerWidth = 42

// PrintBanner writes the banner and agent name to w. Narrow terminals and
// non-terminal writers get the name only.
func PrintBanner(w io.Writer, agentName, version string) {
	if IsTerminal(w) && terminalWidth(w) >= minBannerWidth {
		p := termenv.ColorProfile()
		fmt.Fprintln(w)
		for i, line := range bannerLines {
			fmt.Fprintln(w, termenv.String(line).Foreground(p.Color(bannerColors[i])))
		}
	}
	fmt.Fprintf(w, "\n  %s · stepwise %s\n\n", agentName, version)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
