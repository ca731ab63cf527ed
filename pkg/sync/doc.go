/*
The sync package implements driftsync's reconciliation engine. Two daemons
share one authenticated drive session and one persisted version mapping:

1) RemoteDaemon -- walks the remote folder tree on a timer and applies
   remote-side changes (new files, content updates, renames, moves, and
   trashing) to the local filesystem.
2) LocalDaemon -- snapshots the local tree when files change and uploads
   local-side changes back to the drive.

Each cycle loads the version mapping wholesale, reconciles against it, and
writes it back wholesale. A cycle that hits an expired session reauthorizes,
discards its in-memory edits, and is retried immediately; every other
failure is fatal to the owning daemon.

The remote walk is split into a planning step that computes a list of
operations from the remote snapshot and the cached mapping, and an apply
step that executes them against the filesystem and the mapping. Planning
performs no writes, which keeps the diff logic testable on its own.

Folders whose version stamp hasn't changed are skipped without listing
their children. This relies on the drive's invariant that a folder's stamp
changes whenever anything in its subtree changes.
*/
package sync
