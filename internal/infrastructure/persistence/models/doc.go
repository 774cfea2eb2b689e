// Package models contains GORM persistence models for the marketplace tables.
// Domain types stay free of ORM tags; each model converts with ToDomain and
// a <Name>ModelFromDomain constructor.
//
// Counters that are mutated concurrently (allocation, listing, group, order
// and escrow rows) are only ever changed by conditional UPDATE statements in
// the repositories, never by saving a whole model.
package models
