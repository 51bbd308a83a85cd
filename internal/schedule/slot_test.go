package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tod(t *testing.T, s string) TimeOfDay {
	t.Helper()
	v, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return v
}

func rng(t *testing.T, start, end string) TimeRange {
	t.Helper()
	return TimeRange{Start: tod(t, start), End: tod(t, end)}
}

func TestParseTimeOfDay(t *testing.T) {
	v, err := ParseTimeOfDay("09:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(545), v)
	assert.Equal(t, 9, v.Hour())
	assert.Equal(t, 5, v.Minute())
	assert.Equal(t, "09:05", v.String())

	midnight, err := ParseTimeOfDay("24:00")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(minutesPerDay), midnight)

	for _, bad := range []string{"", "9", "09:5", "ab:00", "09:60", "24:01", "-1:00",
		"9:00", "+9:00", "0009:00", "09:+5", " 9:00", "09:5 ",
	} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestTimeOfDayText(t *testing.T) {
	var v TimeOfDay
	require.NoError(t, v.UnmarshalText([]byte("13:30")))
	out, err := v.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "13:30", string(out))

	assert.Error(t, v.UnmarshalText([]byte("1330")))
}

func TestPartition(t *testing.T) {
	t.Run("nine to nine forty", func(t *testing.T) {
		slots, err := Partition(tod(t, "09:00"), tod(t, "09:40"), 10)
		require.NoError(t, err)
		require.Len(t, slots, 4)

		want := []struct {
			start, end string
			status     SlotStatus
		}{
			{"09:00", "09:10", SlotAvailable},
			{"09:10", "09:20", SlotAvailable},
			{"09:20", "09:30", SlotBreak},
			{"09:30", "09:40", SlotAvailable},
		}
		for i, w := range want {
			assert.Equal(t, w.start, slots[i].Start.String())
			assert.Equal(t, w.end, slots[i].End.String())
			assert.Equal(t, w.status, slots[i].Status)
			assert.Nil(t, slots[i].AppointmentID)
		}
	})

	t.Run("contiguous and exactly one break", func(t *testing.T) {
		for _, n := range []int{1, 2, 3, 6, 7, 18} {
			start := tod(t, "08:00")
			slots, err := Partition(start, start.Add(n*10), 10)
			require.NoError(t, err)
			require.Len(t, slots, n)

			assert.Equal(t, start, slots[0].Start)
			assert.Equal(t, start.Add(n*10), slots[n-1].End)

			breaks := 0
			for i, sl := range slots {
				assert.Equal(t, 10, sl.Range().Minutes())
				if i > 0 {
					assert.Equal(t, slots[i-1].End, sl.Start)
				}
				if sl.Status == SlotBreak {
					breaks++
					assert.Equal(t, n/2, i)
				}
			}
			assert.Equal(t, 1, breaks)
		}
	})

	t.Run("single slot is the break", func(t *testing.T) {
		slots, err := Partition(tod(t, "10:00"), tod(t, "10:15"), 15)
		require.NoError(t, err)
		require.Len(t, slots, 1)
		assert.Equal(t, SlotBreak, slots[0].Status)
	})

	t.Run("trailing partial slot is dropped", func(t *testing.T) {
		slots, err := Partition(tod(t, "09:00"), tod(t, "09:45"), 10)
		require.NoError(t, err)
		require.Len(t, slots, 4)
		assert.Equal(t, "09:40", slots[3].End.String())
	})

	t.Run("ids are unique", func(t *testing.T) {
		slots, err := Partition(tod(t, "09:00"), tod(t, "12:00"), 5)
		require.NoError(t, err)
		seen := map[string]bool{}
		for _, sl := range slots {
			assert.False(t, seen[sl.ID.String()])
			seen[sl.ID.String()] = true
		}
	})

	t.Run("invalid", func(t *testing.T) {
		cases := []struct {
			name       string
			start, end string
			gran       int
		}{
			{"end before start", "10:00", "09:00", 10},
			{"empty", "10:00", "10:00", 10},
			{"zero granularity", "09:00", "10:00", 0},
			{"negative granularity", "09:00", "10:00", -5},
			{"shorter than a slot", "09:00", "09:05", 10},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				slots, err := Partition(tod(t, tc.start), tod(t, tc.end), tc.gran)
				assert.Nil(t, slots)
				assert.ErrorIs(t, err, ErrInvalidRange)

				var rangeErr *InvalidRangeError
				require.ErrorAs(t, err, &rangeErr)
				assert.Equal(t, tc.gran, rangeErr.Granularity)
			})
		}
	})
}

func TestValidate(t *testing.T) {
	existing := []TimeRange{rng(t, "09:00", "10:00"), rng(t, "13:00", "15:00")}

	t.Run("accepts disjoint and touching ranges", func(t *testing.T) {
		assert.NoError(t, Validate(rng(t, "10:00", "11:00"), existing))
		assert.NoError(t, Validate(rng(t, "08:00", "09:00"), existing))
		assert.NoError(t, Validate(rng(t, "11:00", "13:00"), existing))
		assert.NoError(t, Validate(rng(t, "09:00", "10:00"), nil))
	})

	t.Run("rejects overlap", func(t *testing.T) {
		for _, c := range []TimeRange{
			rng(t, "09:30", "10:30"),
			rng(t, "08:00", "09:01"),
			rng(t, "09:10", "09:20"),
			rng(t, "08:00", "16:00"),
			rng(t, "14:59", "15:30"),
		} {
			err := Validate(c, existing)
			assert.ErrorIs(t, err, ErrOverlap, c.String())

			var rej *RejectionError
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, ReasonOverlap, rej.Reason)
			assert.True(t, c.Overlaps(rej.Conflict))
		}
	})

	t.Run("overlap is symmetric", func(t *testing.T) {
		a, b := rng(t, "09:00", "10:00"), rng(t, "09:59", "11:00")
		assert.Equal(t, a.Overlaps(b), b.Overlaps(a))
		assert.Equal(t, Validate(a, []TimeRange{b}) == nil, Validate(b, []TimeRange{a}) == nil)
	})

	t.Run("rejects end before start", func(t *testing.T) {
		err := Validate(rng(t, "11:00", "10:00"), nil)
		assert.ErrorIs(t, err, ErrInvalidRange)
		assert.NotErrorIs(t, err, ErrOverlap)

		var rej *RejectionError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, ReasonEndBeforeStart, rej.Reason)

		assert.ErrorIs(t, Validate(rng(t, "10:00", "10:00"), nil), ErrInvalidRange)
	})
}
