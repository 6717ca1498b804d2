// Package postgres implements [storage.Store] on PostgreSQL.
//
// Connections come from a pgx pool exposed through database/sql, so the
// same handle serves queries and goose migrations. Replace operations run in
// a single transaction.
package postgres
