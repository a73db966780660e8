// Command aviary serves and inspects the AI provider catalog.
package main

import (
	"context"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
