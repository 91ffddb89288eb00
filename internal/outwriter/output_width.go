package outwriter

import (
	"os"

	"golang.org/x/term"
)

// wideTableWidth is the terminal width at which tables show every column.
const wideTableWidth = 140

// terminalWidth returns the width of stdout, or 80 when it is not a terminal.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// wideTables reports whether tables should include the secondary columns.
func wideTables() bool {
	return terminalWidth() >= wideTableWidth
}
