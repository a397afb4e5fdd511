// Package lconsensus contains the core types shared by every lattica component:
// validators, hash-linked blocks, vote signatures,
// and the collaborator interfaces for hashing, time, and signing.
//
// The package contains no mutable state.
// The aggregate that owns validators, pending blocks, and the confirmed chain
// lives behind [github.com/gordian-engine/lattica/lengine.Engine].
package lconsensus
