package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsPartial(t *testing.T) {
	partial := &PartialResultError{Requested: 5, Recovered: 2}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bare", partial, true},
		{"wrapped", fmt.Errorf("room: %w", partial), true},
		{"inside generation failure", fmt.Errorf("%w: %w", ErrGenerationFailed, partial), false},
		{"other", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsPartial(tc.err); got != tc.want {
			t.Fatalf("%s: IsPartial=%v, want %v", tc.name, got, tc.want)
		}
	}
}
