package main

import (
	"os"

	"github.com/lhsnam/s3-db-modifier/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
