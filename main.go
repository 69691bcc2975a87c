package main

import (
	"github.com/rcvieira/fluxo/cmd"
)

func main() {
	cmd.Execute()
}
