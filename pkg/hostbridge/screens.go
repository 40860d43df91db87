package hostbridge

import (
	fx "github.com/maplebus/maple.go/pkg/framework"
	"github.com/maplebus/maple.go/pkg/host"
	"github.com/maplebus/maple.go/pkg/maple"
	"github.com/maplebus/maple.go/pkg/maple/node"
	"github.com/maplebus/maple.go/pkg/maple/port"
	"github.com/maplebus/maple.go/pkg/maple/sched"
	"github.com/maplebus/maple.go/pkg/maple/screen"
)

// screenPush forwards one player's frame to the attached screen
// peripheral. At most one block write per player is in flight.
type screenPush struct {
	player  *host.Player
	ep      *sched.EndpointScheduler
	pending bool
	forced  bool
}

// screenPusher runs every player's push. All state belongs to the loop
// goroutine.
type screenPusher struct {
	pushes []*screenPush
}

func newScreenPusher(players []*host.Player, ports []*port.Port) *screenPusher {
	sp := &screenPusher{}
	for i, pl := range players {
		sp.pushes = append(sp.pushes, &screenPush{
			player: pl,
			ep:     ports[i].Endpoint(sched.PrioritySub),
		})
	}
	return sp
}

// Force sends player idx's frame out on the next iteration even if it
// did not change, for a freshly attached screen.
func (sp *screenPusher) Force(idx int) {
	sp.pushes[idx].forced = true
}

// Control implements Controller.
func (sp *screenPusher) Control(cc fx.ControlContext) error {
	for _, push := range sp.pushes {
		push.run()
	}
	return nil
}

func (push *screenPush) run() {
	if push.pending {
		return
	}
	if !push.forced && !push.player.Screen.NewDataAvailable() {
		return
	}
	addr, ok := screenAddr(push.player.Node)
	if !ok {
		return
	}
	frame := push.player.Screen.ReadData()
	payload := make([]uint32, 2+screen.Words)
	payload[0] = maple.FnScreen
	copy(payload[2:], frame[:])
	push.forced = false
	push.pending = true
	push.ep.Add(&sched.Transmission{
		Target:         push,
		Packet:         maple.NewPacket(maple.CmdBlockWrite, addr, push.player.HostAddr, payload),
		ExpectResponse: true,
	})
}

// TxStarted implements Transmitter.
func (push *screenPush) TxStarted(tx *sched.Transmission) {}

// TxFailed implements Transmitter.
func (push *screenPush) TxFailed(writeFailed, readFailed bool, tx *sched.Transmission) {
	push.pending = false
}

// TxComplete implements Transmitter.
func (push *screenPush) TxComplete(response *maple.Packet, tx *sched.Transmission) {
	push.pending = false
}

// screenAddr finds the attached device carrying the screen function,
// sub peripherals first.
func screenAddr(n *node.MainNode) (byte, bool) {
	for _, rec := range n.Subs() {
		if rec != nil && rec.Info.Functions&maple.FnScreen != 0 {
			return rec.Addr, true
		}
	}
	if main := n.Main(); main != nil && main.Info.Functions&maple.FnScreen != 0 {
		return main.Addr, true
	}
	return 0, false
}
