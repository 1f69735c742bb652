// Package schedule provides due-ness evaluation for recurring jobs.
//
// This package includes:
//   - Schedule interface answering "is this due now, and how long until the
//     next check" given a last-fire instant
//   - Every() for fixed-interval schedules
//   - Crontab() for cron field patterns evaluated in a named timezone
//
// Most users should import the root package github.com/miaokela/dbeat
// which re-exports these functions.
package schedule
