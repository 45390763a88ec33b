// Package service applies ledger policy over raw persistence: roster and
// team-size validation, mode alias resolution, outcome application to the
// rating and streak counters, and map rotation with cooldowns. Errors that
// callers act on carry structured codes from internal/platform/errors.
package service
