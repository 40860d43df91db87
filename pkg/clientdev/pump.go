package clientdev

import (
	fx "github.com/maplebus/maple.go/pkg/framework"
	"github.com/maplebus/maple.go/pkg/maple/storage"
)

// flashPump drives deferred sector programming from the loop's idle
// band, the client-side job the bus cycle must never wait on.
type flashPump struct {
	flash *storage.Flash
}

// Control implements Controller.
func (p *flashPump) Control(cc fx.ControlContext) error {
	return p.flash.Process()
}
