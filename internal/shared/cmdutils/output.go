package cmdutils

import (
	"fmt"
	"io"
)

const Logo = "🎙"

// PrintResponse writes an assistant reply the way every command shows it.
func PrintResponse(w io.Writer, text string) {
	if text == "" {
		return
	}

	fmt.Fprintf(w, "\n%s murmur\n%s\n\n", Logo, text)
}
