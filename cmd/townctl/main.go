package main

import "github.com/mcoot/townserver/internal/cli"

func main() {
	cli.Execute()
}
