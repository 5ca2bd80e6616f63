// Package engine assembles the sync core: storage, cache, queue,
// connectivity monitor, write coordinator, reconciler and event broker, wired
// from a single Config. The CLI and embedding applications talk to the Engine
// rather than to individual components.
package engine
