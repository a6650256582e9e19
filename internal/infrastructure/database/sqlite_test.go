package database

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"
	"time"
)

func TestFormatTime_SortsLexically(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(time.Second),
		base,
		base.Add(1500 * time.Millisecond),
		base.Add(time.Nanosecond),
	}

	formatted := make([]string, len(times))
	for i, tm := range times {
		formatted[i] = FormatTime(tm)
	}
	sort.Strings(formatted)

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	for i, tm := range times {
		if formatted[i] != FormatTime(tm) {
			t.Fatalf("lexical order differs at %d: %s vs %s", i, formatted[i], FormatTime(tm))
		}
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC)

	got, err := ParseTime(FormatTime(want))
	if err != nil {
		t.Fatalf("ParseTime() error = %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("ParseTime() = %v, want %v", got, want)
	}

	legacy, err := ParseTime("2026-03-01T12:00:00Z")
	if err != nil {
		t.Fatalf("ParseTime(RFC3339) error = %v", err)
	}
	if !legacy.Equal(want.Truncate(time.Second)) {
		t.Errorf("ParseTime(RFC3339) = %v", legacy)
	}

	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("ParseTime(garbage) should fail")
	}
}

func TestNullHelpers(t *testing.T) {
	if NullString("").Valid {
		t.Error("NullString(\"\") should be NULL")
	}
	if ns := NullString("x"); !ns.Valid || ns.String != "x" {
		t.Errorf("NullString(x) = %+v", ns)
	}

	if NullTime(nil).Valid {
		t.Error("NullTime(nil) should be NULL")
	}
	now := time.Now().UTC()
	if p := TimePtr(NullTime(&now)); p == nil || !p.Equal(now) {
		t.Errorf("TimePtr round trip = %v, want %v", p, now)
	}
	if TimePtr(sql.NullString{}) != nil {
		t.Error("TimePtr(NULL) should be nil")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE u (id TEXT PRIMARY KEY, email TEXT UNIQUE) STRICT"); err != nil {
		t.Fatalf("CREATE TABLE: %v", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO u VALUES ('a', 'x@example.com')"); err != nil {
		t.Fatalf("INSERT: %v", err)
	}

	_, err := db.ExecContext(ctx, "INSERT INTO u VALUES ('b', 'x@example.com')")
	if !IsUniqueViolation(err) {
		t.Errorf("duplicate email: IsUniqueViolation(%v) = false", err)
	}

	_, err = db.ExecContext(ctx, "INSERT INTO u VALUES ('a', 'y@example.com')")
	if !IsUniqueViolation(err) {
		t.Errorf("duplicate id: IsUniqueViolation(%v) = false", err)
	}

	if IsUniqueViolation(errors.New("UNIQUE constraint failed")) {
		t.Error("plain error should not count as a violation")
	}
	if IsUniqueViolation(nil) {
		t.Error("nil should not count as a violation")
	}
}
