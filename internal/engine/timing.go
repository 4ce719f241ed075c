package engine

import "time"

// ResolveTiming computes the effective wait and display seconds for item.
// Each value is taken from the first positive source in order: the item,
// the file's defaultTiming, the per-file settings (display only), the
// global settings, and finally the built-in fallback. file may be nil.
func ResolveTiming(item ContentItem, file *ContentFile, settings Settings) Timing {
	var fileDefault Timing
	var perFile FileSettings
	if file != nil {
		if file.DefaultTiming != nil {
			fileDefault = *file.DefaultTiming
		}
		perFile = settings.File(file.Filename)
	}

	return Timing{
		WaitTime:    firstPositive(item.WaitTime, fileDefault.WaitTime, settings.Interval, FallbackWait),
		DisplayTime: firstPositive(item.DisplayTime, fileDefault.DisplayTime, perFile.Duration, settings.Duration, FallbackDisplay),
	}
}

// Wait returns the wait time as a duration.
func (t Timing) Wait() time.Duration {
	return time.Duration(t.WaitTime) * time.Second
}

// Display returns the display time as a duration.
func (t Timing) Display() time.Duration {
	return time.Duration(t.DisplayTime) * time.Second
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
