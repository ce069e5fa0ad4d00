/*
Package session serializes turns of a conversation and persists its snapshot.

A Manager pairs a ports.StatelessAgent with a ports.SnapshotStore. Each Turn
runs load, turn and save under a per-session lock, so concurrent requests for
one session never interleave. With a ports.DistributedLocker the guarantee
extends across replicas sharing the store.
*/
package session
