package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	fx "github.com/maplebus/maple.go/pkg/framework"
	"github.com/maplebus/maple.go/pkg/telemetry"
)

// Reporter publishes the retained bridge meta and typed events
// under maple/<bridge-id> topics.
type Reporter struct {
	Queue *Queue
	Meta  telemetry.BridgeMeta

	name     string
	metaJSON []byte
	seq      uint32
}

// NewReporter creates a Reporter for the broker URL.
func NewReporter(brokerURL string, meta telemetry.BridgeMeta) (*Reporter, error) {
	if meta.ID == "" {
		return nil, errors.New("bridge id must be specified")
	}
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	name := "maple/" + meta.ID
	opts.SetBinaryWill(topicPrefix+name+"/meta", nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("maple:" + meta.ID)
	}
	r := &Reporter{Meta: meta, name: name, metaJSON: metaJSON}
	r.Queue = NewQueue(opts, topicPrefix)
	r.Queue.OnConnect = func(*Queue) { r.publishMeta(r.metaJSON) }
	return r, nil
}

// SendEvent publishes a typed event under the bridge's evt topic.
func (r *Reporter) SendEvent(msg fx.Message) error {
	typed, err := telemetry.TypedFrom(msg)
	if err != nil {
		return err
	}
	typed.Sequence = atomic.AddUint32(&r.seq, 1)
	data, err := typed.Encode()
	if err != nil {
		return err
	}
	r.Queue.Pub(r.name+"/evt", data)
	return nil
}

// AddToLoop implements LoopAdder.
func (r *Reporter) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(r)
}

// Run implements Runnable.
func (r *Reporter) Run(ctx context.Context) error {
	r.Queue.Connect()
	<-ctx.Done()
	r.publishMeta(nil)
	r.Queue.Close()
	return nil
}

func (r *Reporter) publishMeta(payload []byte) {
	r.Queue.PubWith(r.name+"/meta", payload, 1, true)
}
