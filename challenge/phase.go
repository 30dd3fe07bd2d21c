// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package challenge

import "github.com/plasmalabs/exitgame/util/timeref"

// InFirstPhase reports whether now falls inside the exit's first-phase
// window: the first half of the minimum exit period, measured from the
// exit's start timestamp. The window boundary itself is outside the phase.
func InFirstPhase(exitStart, now, minExitPeriod timeref.SecondsDuration) bool {
	if now <= exitStart {
		return true
	}
	return now-exitStart < minExitPeriod/2
}
