// +build filelog

package build

// LoggingType is the build-tag-selected default: built with -tags filelog,
// walletbrokerd initializes the rotating file sink in addition to stdout.
const LoggingType = LogTypeFile
