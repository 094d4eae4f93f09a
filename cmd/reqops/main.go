package main

import "github.com/jonwraymond/reqops/internal/cli"

var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.Execute()
}
