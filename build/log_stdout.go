// +build !filelog

package build

// LoggingType is the build-tag-selected default: built without -tags
// filelog, walletbrokerd logs to stdout only.
const LoggingType = LogTypeStdOut
