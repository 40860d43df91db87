package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/maplebus/maple.go/pkg/clientdev"
	"github.com/maplebus/maple.go/pkg/framework"
	"github.com/maplebus/maple.go/pkg/pad"
)

func init() {
	clientdev.SetupFlags()
	pad.SetupFlags()
}

func main() {
	flag.Parse()

	env := clientdev.NewConfig().MustNewEnv()
	reader := pad.NewConfig().NewReader(env.Pad)
	framework.NewLoop().Add(env, reader).RunOrFail()
}
