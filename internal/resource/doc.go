// Package resource gives an application one accessor for named text and
// binary resources while the acquisition strategy depends on the build.
//
// Two backends exist:
//   - [EmbeddedBackend]: content captured with //go:embed at build time. It is
//     decoded once into a process-lifetime table and never re-read; handles
//     over it are never stale and Reload is a no-op.
//   - [FileBackend]: content read from disk at first use. Each handle keeps
//     the file's modification time as a fingerprint and can be checked with
//     [Resource.IsStale] and refreshed with [Resource.Reload] or
//     [Resource.ReloadIfStale].
//
// A [Loader] is built once with the backend for the active [Mode] and all
// accessors go through it: [Load] for one handle, [Load2]..[Load4] and
// [LoadArray] for ordered groups, and [Map], [Map2]..[Map4], [MapArray] to
// apply a transform to each loaded content instead of returning handles.
//
// Nothing in this package starts goroutines or polls. Staleness is only
// observed when a caller asks for it.
package resource
