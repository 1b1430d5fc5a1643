package graph

import "github.com/google/uuid"

// NodeID identifies a node. IDs are name-based UUIDs derived from the
// node's path in the source, so evaluating the same program twice yields
// the same IDs.
type NodeID uuid.UUID

// ZeroID is the unset NodeID.
var ZeroID NodeID

// namespace scopes kerf node IDs.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("kerf:node"))

// NewNodeID returns the ID of the node at path.
func NewNodeID(path string) NodeID {
	return NodeID(uuid.NewSHA1(namespace, []byte(path)))
}

// IsZero reports whether id is unset.
func (id NodeID) IsZero() bool { return id == ZeroID }

func (id NodeID) String() string { return uuid.UUID(id).String() }

// Short returns the first eight hex digits, for messages.
func (id NodeID) Short() string { return id.String()[:8] }

// MarshalText encodes the ID in canonical UUID form.
func (id NodeID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

// UnmarshalText decodes a canonical UUID.
func (id *NodeID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
