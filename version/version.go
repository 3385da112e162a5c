// Package version holds the release string stamped into log lines and the
// server banner.
package version

var V = "v0.2.1"
