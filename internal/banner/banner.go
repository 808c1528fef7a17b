package banner

import (
	"fmt"
	"io"
	"strings"
)

const logo = `
======================================================================
__     __    _          ____       _     _
\ \   / /__ (_) ___ ___| __ ) _ __(_) __| | __ _  ___
 \ \ / / _ \| |/ __/ _ \  _ \| '__| |/ _` + "`" + ` |/ _` + "`" + ` |/ _ \
  \ V / (_) | | (_|  __/ |_) | |  | | (_| | (_| |  __/
   \_/ \___/|_|\___\___|____/|_|  |_|\__,_|\__, |\___|
                                           |___/
----------------------------------------------------------------------`

const footer = `======================================================================`

// ConfigLine represents a single configuration line to display
type ConfigLine struct {
	Label string
	Value string
}

// Print writes the startup banner with the service name and configuration
func Print(w io.Writer, serviceName string, config []ConfigLine) {
	fmt.Fprintln(w, logo)
	fmt.Fprintf(w, "%s\n", serviceName)

	maxLen := 0
	for _, c := range config {
		if len(c.Label) > maxLen {
			maxLen = len(c.Label)
		}
	}

	for _, c := range config {
		padding := strings.Repeat(" ", maxLen-len(c.Label))
		fmt.Fprintf(w, "  %s%s : %s\n", c.Label, padding, c.Value)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Ready.")
	fmt.Fprintln(w, footer)
	fmt.Fprintln(w)
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", 8) + secret[len(secret)-4:]
}
