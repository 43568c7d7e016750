// autolink links bare mentions of wiki page titles and aliases to their pages.
// Single binary, zero config: point it at a Markdown content directory.
package main

import (
	"os"

	"github.com/corey/autolink/cmd/autolink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
