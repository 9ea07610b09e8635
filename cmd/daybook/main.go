package main

import "github.com/daybook-dev/daybook/internal/cli"

func main() {
	cli.Execute()
}
