// Package status holds the runtime state that changes after startup: the last
// database error observed by the probe.
package status
