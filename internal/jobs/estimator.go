package jobs

import "time"

const (
	// defaultMediaDuration is assumed when the fetcher cannot determine
	// the source duration.
	defaultMediaDuration = 300 * time.Second

	// durationBuffer pads the expected duration so the estimate does not
	// appear to finish before the engine actually returns.
	durationBuffer = 1.2

	transcribeFloor   = 30
	transcribeCeiling = 90
)

// ExpectedTranscribeDuration derives the expected wall-clock duration of
// the transcription stage from the source media duration, applying the
// default and the safety buffer.
func ExpectedTranscribeDuration(mediaSeconds float64) time.Duration {
	d := time.Duration(mediaSeconds * float64(time.Second))
	if d <= 0 {
		d = defaultMediaDuration
	}
	return time.Duration(float64(d) * durationBuffer)
}

// EstimateTranscribeProgress maps elapsed time into the transcription
// stage's 30–90 progress window. The value is advisory only: completion is
// driven by the engine returning, not by the estimate reaching the
// ceiling. A non-positive expected duration yields the midpoint.
func EstimateTranscribeProgress(elapsed, expected time.Duration) int {
	if expected <= 0 {
		return 50
	}

	span := elapsed.Seconds() / expected.Seconds() * 60
	if span > 60 {
		span = 60
	}
	return transcribeFloor + int(span)
}
