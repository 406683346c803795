package main

import (
	"github.com/costbound/costbound/pkg/cmd"
)

func main() {
	cmd.Execute()
}
