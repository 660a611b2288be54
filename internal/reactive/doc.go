// Package reactive implements the observable/computed runtime the binding
// engine consumes.
//
// The runtime is deliberately small: observables hold a value and notify
// subscribers when it changes, computeds run a read function while a
// dependency frame is active and re-run whenever anything they read changes.
//
// ARCHITECTURE:
//
// Runtime:
// Every observable and computed belongs to exactly one Runtime. The Runtime
// owns the dependency-frame stack that turns reads into subscriptions. There
// is no package-level state; callers pass the Runtime explicitly.
//
// Versions:
// Every subscribable carries a monotonically increasing version that is
// bumped whenever its value changes. Computeds remember the version of each
// dependency they read, which is how a sleeping pure computed decides
// whether it is stale without holding subscriptions.
//
// Pure computeds:
// A pure computed sleeps while nobody subscribes to it. While asleep it
// holds no subscriptions on its dependencies (so it never keeps them alive)
// and re-evaluates lazily on the next read if any dependency moved. The
// first subscriber wakes it; the last one to leave puts it back to sleep.
//
// CRITICAL: The runtime is single-threaded. Set, Get, Subscribe and Dispose
// must all be called from the goroutine that owns the Runtime. Notification
// is synchronous: Set returns after every dependent computed has re-run.
package reactive
