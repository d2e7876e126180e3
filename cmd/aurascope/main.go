package main

import (
	"github.com/auralis-audio/aurascope/internal/cli"
)

func main() {
	cli.Execute()
}
