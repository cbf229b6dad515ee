package ratelimit

import (
	"testing"
	"time"
)

func TestState_Remaining(t *testing.T) {
	tests := []struct {
		name      string
		used      int
		limit     int
		remaining int
		exhausted bool
		nearLimit bool
	}{
		{name: "fresh window", used: 0, limit: 10, remaining: 10},
		{name: "half used", used: 5, limit: 10, remaining: 5},
		{name: "near limit", used: 8, limit: 10, remaining: 2, nearLimit: true},
		{name: "at limit", used: 10, limit: 10, remaining: 0, nearLimit: true},
		{name: "over limit", used: 11, limit: 10, remaining: 0, exhausted: true, nearLimit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{Used: tt.used, Limit: tt.limit}
			if got := s.Remaining(); got != tt.remaining {
				t.Errorf("Remaining() = %d, want %d", got, tt.remaining)
			}
			if got := s.Exhausted(); got != tt.exhausted {
				t.Errorf("Exhausted() = %v, want %v", got, tt.exhausted)
			}
			if got := s.NearLimit(); got != tt.nearLimit {
				t.Errorf("NearLimit() = %v, want %v", got, tt.nearLimit)
			}
		})
	}
}

func TestState_TimeUntilReset(t *testing.T) {
	s := &State{ResetAt: time.Now().Add(-time.Second)}
	if d := s.TimeUntilReset(); d != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0", d)
	}

	s = &State{ResetAt: time.Now().Add(time.Minute)}
	if d := s.TimeUntilReset(); d <= 0 || d > time.Minute {
		t.Errorf("TimeUntilReset() = %v, want (0, 1m]", d)
	}
}
