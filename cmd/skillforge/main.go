package main

import (
	"context"
	"os"

	"skillforge/cmd/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
