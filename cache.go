package typeconv

import (
	"context"
	"sync"
)

// Method is a compiled conversion procedure. Once compiled it performs no
// further type inspection; it is safe for concurrent invocation.
type Method func(ctx context.Context, v any) (any, error)

// methodRef is the forward-reference placeholder inserted into the cache
// before a description's children compile. Recursive positions close over
// the ref; it is patched once the compilation finalizes, which is what lets
// self-referential types compile to a finite closure graph.
type methodRef struct{ m Method }

func (r *methodRef) call(ctx context.Context, v any) (any, error) { return r.m(ctx, v) }

var (
	cacheMu     sync.Mutex
	methodCache = map[string]*methodRef{}
)

func clearMethodCache() {
	cacheMu.Lock()
	methodCache = map[string]*methodRef{}
	cacheMu.Unlock()
}

func cachedRef(key string) (*methodRef, bool) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	ref, ok := methodCache[key]
	return ref, ok
}

func storeRef(key string, ref *methodRef) {
	cacheMu.Lock()
	methodCache[key] = ref
	cacheMu.Unlock()
}

func dropRef(key string) {
	cacheMu.Lock()
	delete(methodCache, key)
	cacheMu.Unlock()
}

// ---- parse/serialize-time context plumbing ----

type contextKey int

const (
	_ctxKeyPresenceState contextKey = iota
	_ctxKeyPath
	_ctxKeyPresenceMap
)

// presenceState accumulates presence flags during a WithMeta deserialization.
type presenceState struct{ pm PresenceMap }

func withPresenceState(ctx context.Context, st *presenceState) context.Context {
	return context.WithValue(ctx, _ctxKeyPresenceState, st)
}

func presenceStateFrom(ctx context.Context) *presenceState {
	st, _ := ctx.Value(_ctxKeyPresenceState).(*presenceState)
	return st
}

// withPresence supplies a previously collected PresenceMap to serialization,
// enabling exclude-unset semantics.
func withPresence(ctx context.Context, pm PresenceMap) context.Context {
	return context.WithValue(ctx, _ctxKeyPresenceMap, pm)
}

func presenceFrom(ctx context.Context) PresenceMap {
	pm, _ := ctx.Value(_ctxKeyPresenceMap).(PresenceMap)
	return pm
}

func pathFrom(ctx context.Context) string {
	p, _ := ctx.Value(_ctxKeyPath).(string)
	return p
}

func withPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, _ctxKeyPath, path)
}
