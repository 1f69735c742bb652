// Package core provides the fundamental types and interfaces for the dbeat package.
//
// This package contains:
//   - IntervalSchedule, CrontabSchedule and PeriodicJob data models with GORM annotations
//   - ScheduleChange, the shared change-marker row used for cross-process reload signaling
//   - JobRun, the per-invocation run record
//   - Storage and Dispatcher interfaces defining the persistence and queue contracts
//   - Error values for boundary validation and job processing
//
// Most users should import the root package github.com/miaokela/dbeat
// instead of this package directly.
package core
