// Package daemon mirrors files from source to target locations as
// directed by a copyset configuration.
//
// The daemon runs in two phases:
//  1. Setup resolves every copyset target into a ResolvedWatch, copies
//     any source whose target is missing, and registers one watch per
//     source with the notifier. The resulting WatchTable is not modified
//     afterwards.
//  2. Run consumes the notification stream one item at a time and copies
//     the source of every ResolvedWatch whose mask matches the event.
//
// Copies are synchronous and never overlap. Any copy or stream failure
// stops the daemon; unknown watch ids are logged and skipped.
package daemon
