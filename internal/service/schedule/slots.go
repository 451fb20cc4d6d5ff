package schedule

import (
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-queue-api/internal/model"
)

// BuildSlots turns one day's schedule into the bookable time grid. The grid
// steps from start to end (exclusive) in slot-duration increments, dropping
// candidates inside the break window [breakStart, breakEnd) and candidates
// already booked. A nil or inactive schedule, or a blocked day, yields no
// slots. Pure function of its inputs.
func BuildSlots(sched *model.ProviderSchedule, bookedTimes []string, blocked bool) []string {
	if sched == nil || !sched.IsActive || blocked {
		return nil
	}

	start, err := parseMinutes(sched.StartTime)
	if err != nil {
		return nil
	}
	end, err := parseMinutes(sched.EndTime)
	if err != nil {
		return nil
	}
	step := sched.SlotDurationMinutes
	if step <= 0 {
		return nil
	}

	breakStart, breakEnd := -1, -1
	if sched.BreakStartTime != nil && sched.BreakEndTime != nil {
		bs, bsErr := parseMinutes(*sched.BreakStartTime)
		be, beErr := parseMinutes(*sched.BreakEndTime)
		if bsErr == nil && beErr == nil {
			breakStart, breakEnd = bs, be
		}
	}

	booked := make(map[string]struct{}, len(bookedTimes))
	for _, t := range bookedTimes {
		booked[normalizeTime(t)] = struct{}{}
	}

	var slots []string
	for m := start; m < end; m += step {
		if breakStart >= 0 && m >= breakStart && m < breakEnd {
			continue
		}
		slot := formatMinutes(m)
		if _, taken := booked[slot]; taken {
			continue
		}
		slots = append(slots, slot)
	}
	return slots
}

func parseMinutes(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// normalizeTime tolerates "HH:MM:SS" values coming back from a time column.
func normalizeTime(t string) string {
	if len(t) > 5 {
		return t[:5]
	}
	return t
}
