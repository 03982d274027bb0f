package memory

import (
	"context"
	"errors"
	"testing"
)

func TestSheetReturnsCopy(t *testing.T) {
	s := New("mem", [][]string{{"a", "b"}, {"c"}})
	rows, err := s.ReadRows(context.Background())
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	rows[0][0] = "changed"

	again, _ := s.ReadRows(context.Background())
	if again[0][0] != "a" {
		t.Fatalf("grid was mutated through returned rows: %q", again[0][0])
	}
	if s.Name() != "mem" {
		t.Fatalf("Name()=%q", s.Name())
	}
}

func TestSheetFailing(t *testing.T) {
	boom := errors.New("boom")
	if _, err := Failing(boom).ReadRows(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
}

func TestSheetCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New("mem", nil).ReadRows(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
