package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodes(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	cases := map[string]struct {
		err  error
		want int
	}{
		"nil":        {nil, 0},
		"plain":      {errors.New("x"), 1},
		"validation": {ValidationError("x").Build(), 2},
		"config":     {ConfigError("x").Build(), 7},
		"git":        {GitError("x").Build(), 8},
		"network":    {NetworkError("x").Build(), 8},
		"collision":  {NewError(CategoryAlreadyExists, "x").Build(), 9},
		"filesystem": {FileSystemError("x").Build(), 11},
		"internal":   {InternalError("x").Build(), 10},
	}
	for name, tc := range cases {
		if got := a.ExitCodeFor(tc.err); got != tc.want {
			t.Errorf("%s: expected exit %d, got %d", name, tc.want, got)
		}
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	err := NewError(CategoryAlreadyExists, "file already exists").
		WithCode("name_collision").
		WithContext("file", "Essay.pdf").
		WithContext("category", "maamarei_mordechai").
		Build()

	msg := a.FormatError(err)
	if !strings.HasPrefix(msg, "Error (name_collision): file already exists") {
		t.Fatalf("unexpected header: %q", msg)
	}
	// context keys are sorted
	if strings.Index(msg, "category:") > strings.Index(msg, "file:") {
		t.Errorf("expected sorted context keys, got %q", msg)
	}
}
