// Command coverage-report regenerates the repository's HTML coverage
// page and publishes it under docs/content/. It takes no flags; run it
// from anywhere inside the repository.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/thirtyone/event-management/internal/coverage"
)

func main() {
	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run() error {
	root, err := coverage.FindRoot(".")
	if err != nil {
		return err
	}
	return coverage.New(root).Run(context.Background())
}
