// The main package for the socialgraph-parser executable.
package main

import (
	"github.com/JakeFAU/socialgraph-parser/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
