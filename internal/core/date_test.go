package core

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	may3 := time.Date(2024, time.May, 3, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-05-03", may3, true},
		{"2024-5-3", may3, true},
		{"2024-05-03T10:20:30Z", may3, true},
		{"2024-05-03T10:20:30", may3, true},
		{"2024-05-03 10:20:30", may3, true},
		{"03/05/2024", may3, true},
		{"3/5/2024", may3, true},
		{"32/01/2024", time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), true},
		{"1714694400000", may3, true},
		{"3 May 2024", may3, true},
		{"May 3, 2024", may3, true},
		{"2024.05.03", may3, true},
		{"0", time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC), true},
		{"8.64e15", time.Date(275760, time.September, 13, 0, 0, 0, 0, time.UTC), true},
		{"NaN", time.Time{}, false},
		{"Inf", time.Time{}, false},
		{"+Inf", time.Time{}, false},
		{"infinity", time.Time{}, false},
		{"8640000000000001", time.Time{}, false},
		{"99999999999999999999", time.Time{}, false},
		{"1e300", time.Time{}, false},
		{"ab/05/2024", time.Time{}, false},
		{"2024-13-45", time.Time{}, false},
		{"garbage", time.Time{}, false},
		{"", time.Time{}, false},
		{"   ", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseDate(tc.in)
		if ok != tc.ok {
			t.Fatalf("ParseDate(%q) ok=%v, want %v", tc.in, ok, tc.ok)
		}
		if ok && !got.Equal(tc.want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestMonthKeyAndLabel(t *testing.T) {
	d := time.Date(2024, time.May, 17, 0, 0, 0, 0, time.UTC)
	if got := MonthKey(d); got != "2024-05" {
		t.Fatalf("MonthKey = %q", got)
	}
	if got := MonthLabel(d); got != "mai. de 2024" {
		t.Fatalf("MonthLabel = %q", got)
	}
	if got := MonthLabel(time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)); got != "dez. de 2023" {
		t.Fatalf("MonthLabel = %q", got)
	}
	if got := ISODate(d); got != "2024-05-17" {
		t.Fatalf("ISODate = %q", got)
	}
}
