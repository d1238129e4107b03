// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel shared by every entity table
//   - partner.go: customers, addresses and their customer links
//   - catalog.go: items and ledger accounts
//   - sales.go: order records, sales invoices and their child rows
//   - ledger.go: fee documents and journal entries
//   - sync_run.go: sync run history and its log entries
package models
