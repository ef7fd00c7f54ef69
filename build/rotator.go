package build

import (
	"io"

	"github.com/jrick/logrotate/rotator"
)

// NewRotator creates a size-rotated file writer at logFile, keeping at most
// maxRolls rolled-over copies around.
func NewRotator(logFile string, maxRolls int) (io.WriteCloser, error) {
	// logrotate takes its threshold in KB; roll at 10 MB.
	const thresholdKB = 10 * 1024

	r, err := rotator.New(logFile, thresholdKB, false, maxRolls)
	if err != nil {
		return nil, err
	}

	return r, nil
}
