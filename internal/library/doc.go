// Package library persists content items and their processing state in
// SQLite. It owns the status lifecycle (uploading through completed, with
// error as the failure sink), soft deletion, collections and tags, heartbeat
// bookkeeping, and the stage rollbacks behind retries and reprocessing.
package library
