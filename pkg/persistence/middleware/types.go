// Package middleware decorates snapshot stores with encryption and PII
// masking. Decorators compose: the first applied is the outermost.
package middleware

import "github.com/aretw0/stepwise/pkg/ports"

// Middleware allows wrapping a SnapshotStore to add behavior.
type Middleware func(ports.SnapshotStore) ports.SnapshotStore

// Chain applies middlewares to store so that mws[0] sees calls first.
func Chain(store ports.SnapshotStore, mws ...Middleware) ports.SnapshotStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
