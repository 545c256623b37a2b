// The main package for the websearch-worker executable.
package main

import (
	"github.com/JakeFAU/websearch-worker/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
