package scheduler

// Package scheduler runs the nightly moving-average build for the screener.
// It handles:
// - Building daily_ma for the latest price date after the close
// - Skipping weekends
// - Cancelling an in-flight build on shutdown
//
// The main scheduler is implemented in jobs.go
