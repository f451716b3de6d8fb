// Package generator produces synthetic simulation records for the log feed.
//
// A Generator owns a cron schedule that emits one custom record per interval
// (3s by default). Stop waits for an in-flight tick, bounded by its context,
// and Reconfigure lets the config watcher change the interval or disable the
// generator without restarting the process.
package generator
