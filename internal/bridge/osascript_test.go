package bridge

import (
	"reflect"
	"testing"
)

func TestEscapeString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, `plain`},
		{`say "hi"`, `say \"hi\"`},
		{`back\slash`, `back\\slash`},
		{"line\nbreak", "line break"},
		{"carriage\rreturn", "carriage return"},
	}

	for _, tt := range tests {
		if got := EscapeString(tt.in); got != tt.want {
			t.Errorf("EscapeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseTSV(t *testing.T) {
	out := "1\t2026-01-02 10:00:00\talice\tHello\n" +
		"\n" +
		"short line\n" +
		"2\t2026-01-02 11:00:00\tbob\tWorld \n"

	rows := ParseTSV(out, 4)
	want := [][]string{
		{"1", "2026-01-02 10:00:00", "alice", "Hello"},
		{"2", "2026-01-02 11:00:00", "bob", "World"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("ParseTSV = %v, want %v", rows, want)
	}
}

func TestParseTSVEmpty(t *testing.T) {
	if rows := ParseTSV("", 2); rows != nil {
		t.Errorf("ParseTSV(empty) = %v, want nil", rows)
	}
}
