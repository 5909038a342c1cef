// Package postgres implements the caseAuth user, case, and settings stores
// on PostgreSQL through database/sql and the pgx driver.
//
// Schema changes ship as goose migrations embedded in the binary; call
// [Migrate] once at startup.
package postgres
