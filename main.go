package main

import (
	"os"

	"github.com/richd0tcom/trashbin/core/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
