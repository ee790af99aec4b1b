package schedule

// SlotStarts generates the candidate grid for one open window: starting at
// startMin it emits a slot start every duration minutes, stopping as soon as
// the next slot would run past endMin. A slot is only emitted if it fits
// entirely before closing. Inverted or zero-length windows yield nothing.
func SlotStarts(startMin, endMin, duration int) []int {
	if duration <= 0 || startMin < 0 || endMin > minutesPerDay {
		return nil
	}

	var starts []int
	for cur := startMin; cur+duration <= endMin; cur += duration {
		starts = append(starts, cur)
	}
	return starts
}

// SlotTimes is SlotStarts over HH:MM strings.
func SlotTimes(start, end string, duration int) ([]string, error) {
	startMin, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return nil, err
	}

	starts := SlotStarts(startMin, endMin, duration)
	times := make([]string, len(starts))
	for i, m := range starts {
		times[i] = FormatClock(m)
	}
	return times, nil
}
