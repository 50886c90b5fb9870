package runlog

import (
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"
	boxHorizontal  = "─"
	boxVertical    = "│"
)

// getTerminalWidth returns the current terminal width capped at 120,
// falling back to 80 when detection fails (piped output, CI) or the width
// is below 60.
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 60 {
		return 80
	}
	if width > 120 {
		return 120
	}
	return width
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// visibleWidth returns the terminal column width of s, excluding ANSI
// escape sequences and accounting for wide runes.
func visibleWidth(s string) int {
	return runewidth.StringWidth(ansiPattern.ReplaceAllString(s, ""))
}

func border(s string, colored bool) string {
	if !colored {
		return s
	}
	return color.New(color.FgCyan).Sprint(s)
}

func drawBoxTop(width int, colored bool) string {
	return border(boxTopLeft+strings.Repeat(boxHorizontal, width-2)+boxTopRight, colored)
}

func drawBoxBottom(width int, colored bool) string {
	return border(boxBottomLeft+strings.Repeat(boxHorizontal, width-2)+boxBottomRight, colored)
}

func drawBoxDivider(width int, colored bool) string {
	return border("├"+strings.Repeat(boxHorizontal, width-2)+"┤", colored)
}

// drawBoxLine pads content to width inside vertical borders, truncating
// (preferring the visible width so ANSI-colored content still aligns) when
// content overflows.
func drawBoxLine(content string, width int, colored bool) string {
	visible := visibleWidth(content)
	padding := width - 4 - visible
	if padding < 0 {
		padding = 0
		clean := ansiPattern.ReplaceAllString(content, "")
		content = runewidth.Truncate(clean, width-4-3, "...")
	}
	return border(boxVertical, colored) + " " + content + strings.Repeat(" ", padding) + " " + border(boxVertical, colored)
}
