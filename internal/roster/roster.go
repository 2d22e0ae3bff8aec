// Package roster defines the enrolled identities the matcher compares
// detected faces against.
package roster

import "context"

// Identity is one enrolled person. Embedding is the reference face
// embedding and may be empty for students that have not been enrolled
// with a portrait yet; such identities are never matched.
type Identity struct {
	ID         int64
	Name       string
	ExternalID string // student number in the school information system, unique
	Embedding  []float32
}

// HasEmbedding reports whether the identity can participate in matching.
func (i *Identity) HasEmbedding() bool {
	return len(i.Embedding) > 0
}

// Provider supplies the roster for one pipeline pass. The monitor calls
// List on every pass and does not cache the result.
type Provider interface {
	List(ctx context.Context) ([]Identity, error)
}
