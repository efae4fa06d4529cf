package logic

import "time"

// Scheduler tracks logging mode, sampling interval and tick deadlines.
type Scheduler struct {
	mode       Mode
	interval   time.Duration
	count      uint32
	cycleStart time.Time
	next       time.Time
	counts     EventCounts
}

// NewScheduler creates a stopped scheduler on the first interval of the ladder.
// The first tick is due as soon as start has passed.
func NewScheduler(start time.Time) *Scheduler {
	return &Scheduler{
		mode:       ModeStopped,
		interval:   Intervals[0],
		cycleStart: start,
		next:       start,
	}
}

// Process applies the debounced button input and returns the resulting events.
// Start/stop is applied before interval cycling when both are pressed.
// An EventStart tells the caller to clear the sample log.
func (s *Scheduler) Process(in Input) []Event {
	var events []Event

	if in.StartStop {
		if s.mode == ModeLogging {
			s.mode = ModeStopped
			s.counts.Stops++
			events = append(events, s.event(in.Time, EventStop))
		} else {
			s.mode = ModeLogging
			s.count = 0
			s.cycleStart = in.Time
			s.next = in.Time
			s.counts.Starts++
			events = append(events, s.event(in.Time, EventStart))
		}
	}

	if in.IntervalCycle {
		s.interval = NextInterval(s.interval)
		s.count = 0
		s.cycleStart = in.Time
		s.next = in.Time
		s.counts.IntervalChanges++
		events = append(events, s.event(in.Time, EventIntervalChange))
	}

	return events
}

// CheckCapacity stops logging once the buffered sample count reaches Capacity.
// Returns an EventAutoStop on the transition, nil otherwise.
func (s *Scheduler) CheckCapacity(buffered int, now time.Time) *Event {
	if s.mode != ModeLogging || buffered < Capacity {
		return nil
	}
	s.mode = ModeStopped
	s.counts.AutoStops++
	e := s.event(now, EventAutoStop)
	return &e
}

// Due reports whether now has passed the next tick deadline.
func (s *Scheduler) Due(now time.Time) bool {
	return now.After(s.next)
}

// Advance counts a completed tick and recomputes the next deadline from the
// cycle start, so late ticks do not push later deadlines back.
func (s *Scheduler) Advance() {
	s.count++
	s.next = s.cycleStart.Add(s.interval * time.Duration(s.count))
}

// Elapsed returns the milliseconds since the cycle start, used as sample timestamp.
func (s *Scheduler) Elapsed(now time.Time) uint32 {
	d := now.Sub(s.cycleStart)
	if d < 0 {
		return 0
	}
	return uint32(d.Milliseconds())
}

// Mode returns the current logging mode.
func (s *Scheduler) Mode() Mode {
	return s.mode
}

// Logging reports whether samples should be appended.
func (s *Scheduler) Logging() bool {
	return s.mode == ModeLogging
}

// Interval returns the current sampling interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Count returns the number of ticks since the cycle start.
func (s *Scheduler) Count() uint32 {
	return s.count
}

// Next returns the next tick deadline.
func (s *Scheduler) Next() time.Time {
	return s.next
}

// EventCountsSnapshot returns a copy of the event counts.
func (s *Scheduler) EventCountsSnapshot() EventCounts {
	return s.counts
}

func (s *Scheduler) event(t time.Time, typ EventType) Event {
	return Event{
		Timestamp: t,
		Type:      typ,
		Mode:      s.mode,
		Interval:  s.interval,
	}
}
