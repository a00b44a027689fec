package deadline

import "fmt"

// Band groups remaining time into display severities. Presentation only;
// the enforcement contract does not depend on it.
type Band string

const (
	BandNormal   Band = "normal"   // more than five minutes left
	BandWarning  Band = "warning"  // five minutes or less
	BandCritical Band = "critical" // one minute or less
)

// FormatRemaining renders whole seconds as mm:ss.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// BandFor maps remaining seconds to a display band.
func BandFor(seconds int) Band {
	switch {
	case seconds <= 60:
		return BandCritical
	case seconds <= 300:
		return BandWarning
	default:
		return BandNormal
	}
}
