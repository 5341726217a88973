package main

import "github.com/royglick/laboneq/internal/cli"

func main() {
	cli.Execute()
}
