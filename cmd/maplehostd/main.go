package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/maplebus/maple.go/pkg/framework"
	"github.com/maplebus/maple.go/pkg/hostbridge"
)

func init() {
	hostbridge.SetupFlags()
}

func main() {
	flag.Parse()

	bridge := hostbridge.NewConfig().MustNewBridge()
	framework.NewLoop().Add(bridge).RunOrFail()
}
