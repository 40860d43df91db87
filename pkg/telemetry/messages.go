// Bridge telemetry is published from the host bridge to monitoring
// tools, and uses bus-agnostic primitives.
//
// Producer: host bridge
// Consumer: monitors
package telemetry

import (
	"github.com/golang/protobuf/proto"

	fx "github.com/maplebus/maple.go/pkg/framework"
)

// NodeEvent reports a device attach or detach on a bus port.
type NodeEvent struct {
	Port      uint32 `protobuf:"varint,1,opt,name=port,proto3" json:"port,omitempty"`
	Addr      uint32 `protobuf:"varint,2,opt,name=addr,proto3" json:"addr,omitempty"`
	Attached  bool   `protobuf:"varint,3,opt,name=attached,proto3" json:"attached,omitempty"`
	Functions uint32 `protobuf:"varint,4,opt,name=functions,proto3" json:"functions,omitempty"`
	Product   string `protobuf:"bytes,5,opt,name=product,proto3" json:"product,omitempty"`
}

func (m *NodeEvent) Reset()         { *m = NodeEvent{} }
func (m *NodeEvent) String() string { return proto.CompactTextString(m) }
func (*NodeEvent) ProtoMessage()    {}

// NewMessage implements Message.
func (m *NodeEvent) NewMessage() fx.Message { return &NodeEvent{} }

// TypeID implements SerializableMessage.
func (m *NodeEvent) TypeID() uint32 { return NodeEventTypeID }

// Serializable implements SerializableMessage.
func (m *NodeEvent) Serializable() proto.Message { return m }

// PortStatus reports the one line device summary of a port.
type PortStatus struct {
	Port    uint32 `protobuf:"varint,1,opt,name=port,proto3" json:"port,omitempty"`
	Summary string `protobuf:"bytes,2,opt,name=summary,proto3" json:"summary,omitempty"`
}

func (m *PortStatus) Reset()         { *m = PortStatus{} }
func (m *PortStatus) String() string { return proto.CompactTextString(m) }
func (*PortStatus) ProtoMessage()    {}

// NewMessage implements Message.
func (m *PortStatus) NewMessage() fx.Message { return &PortStatus{} }

// TypeID implements SerializableMessage.
func (m *PortStatus) TypeID() uint32 { return PortStatusTypeID }

// Serializable implements SerializableMessage.
func (m *PortStatus) Serializable() proto.Message { return m }

// BridgeMeta describes a bridge on the retained meta topic.
type BridgeMeta struct {
	ID      string `json:"id"`
	Serial  string `json:"serial,omitempty"`
	Version string `json:"version,omitempty"`
	Ports   int    `json:"ports,omitempty"`
}

// TypeID Groups
const (
	GroupBridge uint32 = 0x00000000
	GroupPort   uint32 = 0x00010000
	GroupCustom uint32 = 0x7f000000 // base group id for custom messages.
)

// TypeIDs
const (
	NodeEventTypeID  uint32 = TypeIDKindEvent | GroupPort | 0x0000
	PortStatusTypeID uint32 = TypeIDKindEvent | GroupPort | 0x0001
)
