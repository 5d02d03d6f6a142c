package version

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Version holds the current build version. Override with
// -ldflags "-X github.com/podscribe/internal/version.Version=v1.2.3".
var Version = "dev"

const (
	separator = "────────────────────────────────────────────────────────────"
	banner    = `
                   _               _ _
  _ __   ___   __| |___  ___ _ __(_) |__   ___
 | '_ \ / _ \ / _' / __|/ __| '__| | '_ \ / _ \
 | |_) | (_) | (_| \__ \ (__| |  | | |_) |  __/
 | .__/ \___/ \__,_|___/\___|_|  |_|_.__/ \___|
 |_|
`
)

// Banner returns the ASCII-art project banner.
func Banner() string {
	return strings.Trim(banner, "\n")
}

// PrintBanner writes the decorated banner and version info to w (stdout if nil).
func PrintBanner(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, Banner())
	fmt.Fprintf(w, "\n  podscribe %s\n", Version)
	fmt.Fprintf(w, "  Podcast Transcription Service\n")
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w)
}
