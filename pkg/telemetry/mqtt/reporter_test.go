package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maplebus/maple.go/pkg/telemetry"
)

func TestReporterSendEvent(t *testing.T) {
	client := &fakeClient{}
	r := &Reporter{
		Queue: &Queue{Client: client, TopicPrefix: "pre/"},
		name:  "maple/b1",
	}
	ev := &telemetry.NodeEvent{Port: 2, Attached: true, Product: "Dreamcast Controller"}
	require.NoError(t, r.SendEvent(ev))
	require.NoError(t, r.SendEvent(&telemetry.PortStatus{Port: 2, Summary: "NULL"}))
	require.Len(t, client.pubs, 2)

	pub := client.pubs[0]
	require.Equal(t, "pre/maple/b1/evt", pub.topic)
	typed, err := telemetry.DecodeTyped(pub.payload)
	require.NoError(t, err)
	require.Equal(t, uint32(1), typed.Sequence)
	msg, err := typed.Decode()
	require.NoError(t, err)
	require.Equal(t, ev, msg)

	typed, err = telemetry.DecodeTyped(client.pubs[1].payload)
	require.NoError(t, err)
	require.Equal(t, uint32(2), typed.Sequence)
}

func TestReporterMeta(t *testing.T) {
	meta := telemetry.BridgeMeta{ID: "b1", Serial: "0123456789ABCDEF", Ports: 2}
	r, err := NewReporter("mqtt://localhost:1883/pre/", meta)
	require.NoError(t, err)
	require.Equal(t, "maple/b1", r.name)
	require.Equal(t, "pre/", r.Queue.TopicPrefix)

	client := &fakeClient{}
	r.Queue.Client = client
	r.Queue.OnConnect(r.Queue)
	require.Len(t, client.pubs, 1)
	pub := client.pubs[0]
	require.Equal(t, "pre/maple/b1/meta", pub.topic)
	require.True(t, pub.retained)
	require.Equal(t, byte(1), pub.qos)
	var decoded telemetry.BridgeMeta
	require.NoError(t, json.Unmarshal(pub.payload, &decoded))
	require.Equal(t, meta, decoded)
}

func TestNewReporterRequiresID(t *testing.T) {
	_, err := NewReporter("mqtt://localhost:1883/", telemetry.BridgeMeta{})
	require.Error(t, err)
}
