package main

import (
	"context"
	"os"

	"github.com/goliatone/go-library-client/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:]))
}
