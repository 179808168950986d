package main

import "testing"

func TestShouldProcessAsync(t *testing.T) {
	cases := []struct {
		recordCount int
		threshold   int
		async       bool
	}{
		{recordCount: 10, threshold: 500, async: false},
		{recordCount: 500, threshold: 500, async: false},
		{recordCount: 501, threshold: 500, async: true},
		// 閾値0以下は常に同期
		{recordCount: 10000, threshold: 0, async: false},
		{recordCount: 10000, threshold: -1, async: false},
	}
	for i, tc := range cases {
		if got := shouldProcessAsync(tc.recordCount, tc.threshold); got != tc.async {
			t.Fatalf("case %d: shouldProcessAsync(%d, %d) = %v, want %v",
				i, tc.recordCount, tc.threshold, got, tc.async)
		}
	}
}
