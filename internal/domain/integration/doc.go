// Package integration contains the Integration bounded context.
// This context governs a synchronization run between the marketplace and the ERP.
//
// Key concepts:
//   - SyncError / FatalError: the two failure classes of a run
//   - Outcome: tagged result of processing one order (Ok, Skip, Fail)
//   - SyncLog: append-only audit log of one run, flushed once at the end
//   - SyncRun: persisted record of a run with its status and log
//   - RunLock / ArchiveStore: ports for run exclusion and transaction archives
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
