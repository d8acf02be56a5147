package streak

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestTransition_FirstActivity(t *testing.T) {
	c, l := transition(0, 0, nil, day("2024-01-01"))
	if c != 1 || l != 1 {
		t.Errorf("transition(first) = (%d,%d), want (1,1)", c, l)
	}
}

func TestTransition_SameDay(t *testing.T) {
	last := day("2024-01-05")
	c, l := transition(5, 10, &last, day("2024-01-05"))
	if c != 5 || l != 10 {
		t.Errorf("transition(same day) = (%d,%d), want (5,10)", c, l)
	}
}

func TestTransition_ConsecutiveDay(t *testing.T) {
	last := day("2024-01-05")
	c, l := transition(5, 10, &last, day("2024-01-06"))
	if c != 6 || l != 10 {
		t.Errorf("transition(+1 day) = (%d,%d), want (6,10)", c, l)
	}
}

func TestTransition_ConsecutiveDayExtendsLongest(t *testing.T) {
	last := day("2024-01-05")
	c, l := transition(10, 10, &last, day("2024-01-06"))
	if c != 11 || l != 11 {
		t.Errorf("transition(+1 day at longest) = (%d,%d), want (11,11)", c, l)
	}
}

func TestTransition_GapResetsCurrent(t *testing.T) {
	last := day("2024-01-05")
	c, l := transition(5, 10, &last, day("2024-01-07"))
	if c != 1 || l != 10 {
		t.Errorf("transition(+2 days) = (%d,%d), want (1,10)", c, l)
	}
}

func TestTransition_PastActivityIsNoop(t *testing.T) {
	last := day("2024-01-05")
	c, l := transition(5, 10, &last, day("2024-01-04"))
	if c != 5 || l != 10 {
		t.Errorf("transition(past activity) = (%d,%d), want unchanged (5,10)", c, l)
	}
}

func TestTransition_MonthBoundary(t *testing.T) {
	last := day("2024-01-31")
	c, l := transition(20, 25, &last, day("2024-02-01"))
	if c != 21 || l != 25 {
		t.Errorf("transition(month boundary) = (%d,%d), want (21,25)", c, l)
	}
}

func TestResolveLocation_InvalidDegradesToUTC(t *testing.T) {
	loc := resolveLocation("Not/A/Real/Zone")
	if loc != time.UTC {
		t.Errorf("resolveLocation(invalid) = %v, want UTC", loc)
	}
}

func TestResolveLocation_Empty(t *testing.T) {
	if resolveLocation("") != time.UTC {
		t.Error("resolveLocation(\"\") should default to UTC")
	}
}
