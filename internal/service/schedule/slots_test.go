package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/clinic-queue-api/internal/model"
)

func strPtr(s string) *string { return &s }

func workdaySchedule() *model.ProviderSchedule {
	return &model.ProviderSchedule{
		StartTime:           "09:00",
		EndTime:             "17:00",
		BreakStartTime:      strPtr("13:00"),
		BreakEndTime:        strPtr("14:00"),
		SlotDurationMinutes: 15,
		IsActive:            true,
	}
}

func TestBuildSlots_FullWorkday(t *testing.T) {
	slots := BuildSlots(workdaySchedule(), nil, false)

	// 8 hours minus the 1 hour break, at 15 minutes per slot
	assert.Len(t, slots, 28)
	assert.Equal(t, "09:00", slots[0])
	assert.Equal(t, "12:45", slots[15])
	assert.Equal(t, "14:00", slots[16])
	assert.Equal(t, "16:45", slots[27])
	assert.NotContains(t, slots, "13:00")
	assert.NotContains(t, slots, "13:45")
	assert.NotContains(t, slots, "17:00")
}

func TestBuildSlots_ExcludesBookedTimes(t *testing.T) {
	slots := BuildSlots(workdaySchedule(), []string{"09:00", "10:30"}, false)

	assert.Len(t, slots, 26)
	assert.NotContains(t, slots, "09:00")
	assert.NotContains(t, slots, "10:30")
	assert.Equal(t, "09:15", slots[0])
}

func TestBuildSlots_NormalizesBookedSeconds(t *testing.T) {
	slots := BuildSlots(workdaySchedule(), []string{"09:00:00"}, false)

	assert.NotContains(t, slots, "09:00")
}

func TestBuildSlots_NoBreak(t *testing.T) {
	sched := &model.ProviderSchedule{
		StartTime:           "10:00",
		EndTime:             "12:00",
		SlotDurationMinutes: 30,
		IsActive:            true,
	}

	slots := BuildSlots(sched, nil, false)

	assert.Equal(t, []string{"10:00", "10:30", "11:00", "11:30"}, slots)
}

func TestBuildSlots_BlockedDay(t *testing.T) {
	assert.Nil(t, BuildSlots(workdaySchedule(), nil, true))
}

func TestBuildSlots_InactiveSchedule(t *testing.T) {
	sched := workdaySchedule()
	sched.IsActive = false

	assert.Nil(t, BuildSlots(sched, nil, false))
}

func TestBuildSlots_NilSchedule(t *testing.T) {
	assert.Nil(t, BuildSlots(nil, nil, false))
}

func TestBuildSlots_InvalidDuration(t *testing.T) {
	sched := workdaySchedule()
	sched.SlotDurationMinutes = 0

	assert.Nil(t, BuildSlots(sched, nil, false))
}

func TestBuildSlots_DurationNotDividingRange(t *testing.T) {
	sched := &model.ProviderSchedule{
		StartTime:           "09:00",
		EndTime:             "10:00",
		SlotDurationMinutes: 45,
		IsActive:            true,
	}

	// candidates step until the end time, exclusive
	slots := BuildSlots(sched, nil, false)
	assert.Equal(t, []string{"09:00", "09:45"}, slots)
}
