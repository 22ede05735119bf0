package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

var rawMarkdown = flag.Bool("raw", false, "Print raw markdown instead of rendering it for the terminal")

// printMarkdown renders md for the terminal, or prints it as is when stdout
// is not a terminal.
func printMarkdown(md string) {
	fd := int(os.Stdout.Fd())
	if *rawMarkdown || !term.IsTerminal(fd) {
		fmt.Print(md)
		return
	}
	width := 100
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		width = w
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}
