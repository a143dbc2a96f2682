package main

import "github.com/rustyeddy/portfolio/internal/cli"

func main() {
	cli.Execute()
}
