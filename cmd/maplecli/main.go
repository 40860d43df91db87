package main

import (
	"github.com/maplebus/maple.go/pkg/cli/sh"

	_ "github.com/maplebus/maple.go/pkg/cli/cmds/bus"
)

//go-build: CGO_ENABLED=0

func init() {
	sh.SetupFlags()
}

func main() {
	sh.Main()
}
