// Package storage provides the GORM-backed Storage implementation for the
// dbeat package, plus connection pool configuration helpers.
package storage
