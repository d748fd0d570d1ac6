package utils

import "testing"

func TestClampLimit(t *testing.T) {
	cases := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero falls back to default", 0, 20},
		{"negative falls back to default", -5, 20},
		{"in range passes through", 50, 50},
		{"above max is capped", 999, 200},
		{"exactly max passes through", 200, 200},
	}
	for _, tc := range cases {
		if got := ClampLimit(tc.limit, 20, 200); got != tc.want {
			t.Errorf("%s: ClampLimit(%d, 20, 200) = %d, want %d", tc.name, tc.limit, got, tc.want)
		}
	}
}
