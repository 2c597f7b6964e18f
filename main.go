// The main package for the urlbot executable.
package main

import (
	"github.com/JakeFAU/urlbot/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
