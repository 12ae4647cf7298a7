package domain

import (
	"errors"
	"testing"
)

func TestParseGoal(t *testing.T) {
	cases := []struct {
		raw  string
		want GoalKind
	}{
		{"cut", GoalCut},
		{"CUT", GoalCut},
		{"  maintain ", GoalMaintain},
		{"Bulk", GoalBulk},
	}
	for _, tc := range cases {
		got, err := ParseGoal(tc.raw)
		if err != nil {
			t.Errorf("ParseGoal(%q): не ожидали ошибку %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseGoal(%q) = %s, ожидали %s", tc.raw, got, tc.want)
		}
	}

	for _, raw := range []string{"", "похудеть", "cutting"} {
		if _, err := ParseGoal(raw); !errors.Is(err, ErrUnknownGoal) {
			t.Errorf("ParseGoal(%q): ожидали ErrUnknownGoal, получили %v", raw, err)
		}
	}
}
