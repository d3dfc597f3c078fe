package main

import (
	"os"

	"github.com/git-pkgs/slopguard/internal/cli"
)

func main() {
	os.Exit(cli.ExitCode(cli.Execute()))
}
