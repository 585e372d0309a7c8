package plan

import (
	"testing"
	"time"

	"rust_mentor_bot/internal/domain/learner"
)

func prefUser(freq, startMin, endMin int) *learner.User {
	return &learner.User{
		ID:                   1,
		Frequency:            freq,
		WindowStartMinute:    startMin,
		WindowEndMinute:      endMin,
		NotificationsEnabled: true,
	}
}

func TestSlotsEvenlySpaced(t *testing.T) {
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		user *learner.User
		want []string
	}{
		{
			name: "twice a day in 08:00-21:00",
			user: prefUser(2, 8*60, 21*60),
			want: []string{"08:00", "14:30"},
		},
		{
			name: "once a day fires at window start",
			user: prefUser(1, 9*60, 18*60),
			want: []string{"09:00"},
		},
		{
			name: "three times a day",
			user: prefUser(3, 8*60, 20*60),
			want: []string{"08:00", "12:00", "16:00"},
		},
		{
			name: "frequency clamped to max",
			user: prefUser(9, 8*60, 20*60),
			want: []string{"08:00", "12:00", "16:00"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := Slots(tt.user, day)
			if len(slots) != len(tt.want) {
				t.Fatalf("got %d slots, want %d", len(slots), len(tt.want))
			}
			for i, slot := range slots {
				if got := slot.Format("15:04"); got != tt.want[i] {
					t.Errorf("slot %d = %s, want %s", i, got, tt.want[i])
				}
				if slot.Day() != day.Day() {
					t.Errorf("slot %d fell outside the requested day: %v", i, slot)
				}
			}
		})
	}
}

func TestSlotsStayInsideWindow(t *testing.T) {
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	for freq := 1; freq <= 3; freq++ {
		u := prefUser(freq, 8*60, 21*60)
		for _, slot := range Slots(u, day) {
			minute := slot.Hour()*60 + slot.Minute()
			if minute < u.WindowStartMinute || minute >= u.WindowEndMinute {
				t.Errorf("freq %d: slot %v outside window [08:00,21:00)", freq, slot)
			}
		}
	}
}

func TestDefer(t *testing.T) {
	u := prefUser(2, 8*60, 21*60)

	tests := []struct {
		name      string
		requested time.Time
		want      time.Time
	}{
		{
			name:      "before window waits for start",
			requested: time.Date(2025, 6, 10, 6, 30, 0, 0, time.UTC),
			want:      time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC),
		},
		{
			name:      "inside window fires as requested",
			requested: time.Date(2025, 6, 10, 13, 15, 0, 0, time.UTC),
			want:      time.Date(2025, 6, 10, 13, 15, 0, 0, time.UTC),
		},
		{
			name:      "after window waits for tomorrow",
			requested: time.Date(2025, 6, 10, 22, 0, 0, 0, time.UTC),
			want:      time.Date(2025, 6, 11, 8, 0, 0, 0, time.UTC),
		},
		{
			name:      "window end is exclusive",
			requested: time.Date(2025, 6, 10, 21, 0, 0, 0, time.UTC),
			want:      time.Date(2025, 6, 11, 8, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Defer(u, tt.requested); !got.Equal(tt.want) {
				t.Errorf("Defer(%v) = %v, want %v", tt.requested, got, tt.want)
			}
		})
	}
}

func TestLastElapsedSlot(t *testing.T) {
	u := prefUser(2, 8*60, 21*60) // slots at 08:00 and 14:30

	tests := []struct {
		name     string
		now      time.Time
		want     string
		wantNone bool
	}{
		{name: "before first slot", now: time.Date(2025, 6, 10, 7, 0, 0, 0, time.UTC), wantNone: true},
		{name: "between slots", now: time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC), want: "08:00"},
		{name: "after last slot", now: time.Date(2025, 6, 10, 20, 0, 0, 0, time.UTC), want: "14:30"},
		{name: "exactly on a slot", now: time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC), want: "14:30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, ok := LastElapsedSlot(u, tt.now)
			if tt.wantNone {
				if ok {
					t.Fatalf("expected no elapsed slot, got %v", slot)
				}
				return
			}
			if !ok {
				t.Fatal("expected an elapsed slot")
			}
			if got := slot.Format("15:04"); got != tt.want {
				t.Errorf("last elapsed slot = %s, want %s", got, tt.want)
			}
		})
	}
}
