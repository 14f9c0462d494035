package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDateOnly(t *testing.T) {
	cases := map[string]time.Time{
		"2024-01-01":          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		" 2024/02/03 ":        time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
		"2024-03":             time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		"2024-03-04 05:06:07": time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	for in, want := range cases {
		got, ok := ParseTime(in)
		if !ok {
			t.Fatalf("%q: expected ok", in)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}

	got, ok = ParseTime(strconv.FormatInt(ts*1000, 10))
	if !ok || got.Unix() != ts {
		t.Fatalf("unexpected unix millis %v", got.Unix())
	}
}

func TestParseTimeInvalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "13/45/2024", "-5"} {
		if _, ok := ParseTime(in); ok {
			t.Fatalf("%q: expected failure", in)
		}
	}
}

func TestParseTimeYear(t *testing.T) {
	cases := map[string]time.Time{
		"2024":     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"1999":     time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
		"20240315": time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, ok := ParseTime(in)
		if !ok {
			t.Fatalf("%q: expected ok", in)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
	}
	if _, ok := ParseTime("123456"); ok {
		t.Fatalf("small integers are not unix times")
	}
}

func TestParseTimeUnixMillisKeepsPrecision(t *testing.T) {
	got, ok := ParseTime("1700000000100")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UnixMilli() != 1700000000100 {
		t.Fatalf("unexpected millis %v", got.UnixMilli())
	}

	again, ok := ParseTime(FormatDate(got))
	if !ok || !again.Equal(got) {
		t.Fatalf("round trip lost precision: %v -> %q -> %v", got, FormatDate(got), again)
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)); got != "2024-01-02" {
		t.Fatalf("unexpected %s", got)
	}
	if got := FormatDate(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)); got != "2024-01-02T03:04:05Z" {
		t.Fatalf("unexpected %s", got)
	}
	if got := FormatDate(time.Date(2024, 1, 2, 3, 4, 5, 200e6, time.UTC)); got != "2024-01-02T03:04:05.2Z" {
		t.Fatalf("unexpected %s", got)
	}
}
