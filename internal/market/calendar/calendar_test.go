package calendar

import (
	"testing"
	"time"
)

func seoul(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Fatalf("load Asia/Seoul: %v", err)
	}
	return loc
}

func TestIsOpen(t *testing.T) {
	loc := seoul(t)
	cal := New(NewFakeClock(time.Now()), DefaultConfig())

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday open boundary", time.Date(2024, 6, 3, 9, 0, 0, 0, loc), true},
		{"monday close boundary inclusive", time.Date(2024, 6, 3, 15, 30, 0, 0, loc), true},
		{"monday just before open", time.Date(2024, 6, 3, 8, 59, 59, 0, loc), false},
		{"monday just after close", time.Date(2024, 6, 3, 15, 30, 1, 0, loc), false},
		{"monday midday", time.Date(2024, 6, 3, 12, 0, 0, 0, loc), true},
		{"saturday", time.Date(2024, 6, 8, 10, 0, 0, 0, loc), false},
		{"sunday", time.Date(2024, 6, 9, 10, 0, 0, 0, loc), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cal.IsOpen(tc.at); got != tc.want {
				t.Errorf("IsOpen(%v) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestNextOpen(t *testing.T) {
	loc := seoul(t)
	cal := New(NewFakeClock(time.Now()), DefaultConfig())

	cases := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{
			"before today's open rolls to today",
			time.Date(2024, 6, 3, 8, 0, 0, 0, loc),
			time.Date(2024, 6, 3, 9, 0, 0, 0, loc),
		},
		{
			"mid-session stays at today's already-passed open",
			time.Date(2024, 6, 3, 10, 0, 0, 0, loc),
			time.Date(2024, 6, 3, 9, 0, 0, 0, loc),
		},
		{
			"at close boundary rolls to tomorrow",
			time.Date(2024, 6, 3, 15, 30, 0, 0, loc),
			time.Date(2024, 6, 4, 9, 0, 0, 0, loc),
		},
		{
			"after close rolls to tomorrow",
			time.Date(2024, 6, 3, 16, 0, 0, 0, loc),
			time.Date(2024, 6, 4, 9, 0, 0, 0, loc),
		},
		{
			"friday after close rolls past weekend",
			time.Date(2024, 6, 7, 16, 0, 0, 0, loc),
			time.Date(2024, 6, 10, 9, 0, 0, 0, loc),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cal.NextOpen(tc.at); !got.Equal(tc.want) {
				t.Errorf("NextOpen(%v) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}
