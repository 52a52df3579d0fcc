package engine

import "testing"

func cand(t *testing.T, id, amount, desc string) SumCandidate {
	t.Helper()
	return SumCandidate{ID: id, Amount: dec(t, amount), Description: desc}
}

func subsetIDSet(subset []SumCandidate) map[string]bool {
	out := make(map[string]bool, len(subset))
	for _, c := range subset {
		out[c.ID] = true
	}
	return out
}

func TestFindSubsetSum_FindsPair(t *testing.T) {
	pool := []SumCandidate{
		cand(t, "a", "3000.00", ""),
		cand(t, "b", "2000.00", ""),
		cand(t, "c", "750.00", ""),
	}

	subset := FindSubsetSum(pool, dec(t, "5000.00"), "", 1.0, 5)
	if len(subset) != 2 {
		t.Fatalf("expected a 2-element subset, got %v", subset)
	}
	ids := subsetIDSet(subset)
	if !ids["a"] || !ids["b"] {
		t.Errorf("expected {a, b}, got %v", subset)
	}
}

func TestFindSubsetSum_PrefersSmallerSubset(t *testing.T) {
	// Both {a} and {b, c} hit the target; the single element must win.
	pool := []SumCandidate{
		cand(t, "a", "500.00", ""),
		cand(t, "b", "300.00", ""),
		cand(t, "c", "200.00", ""),
	}

	subset := FindSubsetSum(pool, dec(t, "500.00"), "", 1.0, 5)
	if len(subset) != 1 || subset[0].ID != "a" {
		t.Errorf("expected single-element subset {a}, got %v", subset)
	}
}

func TestFindSubsetSum_MustInclude(t *testing.T) {
	pool := []SumCandidate{
		cand(t, "a", "500.00", ""),
		cand(t, "b", "300.00", ""),
		cand(t, "c", "200.00", ""),
	}

	subset := FindSubsetSum(pool, dec(t, "500.00"), "b", 1.0, 5)
	ids := subsetIDSet(subset)
	if !ids["b"] {
		t.Fatalf("subset must contain b, got %v", subset)
	}
	if len(subset) != 2 || !ids["c"] {
		t.Errorf("expected {b, c}, got %v", subset)
	}

	if got := FindSubsetSum(pool, dec(t, "500.00"), "missing", 1.0, 5); got != nil {
		t.Errorf("unknown mustInclude id should yield nil, got %v", got)
	}
}

func TestFindSubsetSum_RespectsMaxSize(t *testing.T) {
	pool := []SumCandidate{
		cand(t, "a", "10.00", ""),
		cand(t, "b", "10.00", ""),
		cand(t, "c", "10.00", ""),
		cand(t, "d", "10.00", ""),
		cand(t, "e", "10.00", ""),
		cand(t, "f", "10.00", ""),
	}

	if got := FindSubsetSum(pool, dec(t, "60.00"), "", 1.0, 5); got != nil {
		t.Errorf("6-element solution must not be found with maxSize 5, got %v", got)
	}
	if got := FindSubsetSum(pool, dec(t, "50.00"), "", 1.0, 5); len(got) != 5 {
		t.Errorf("expected a 5-element subset, got %v", got)
	}
}

func TestFindSubsetSum_Tolerance(t *testing.T) {
	pool := []SumCandidate{
		cand(t, "a", "3000.00", ""),
		cand(t, "b", "1995.00", ""),
	}

	// 4995 vs 5000 is inside 1 percent, outside 0.01 percent.
	if got := FindSubsetSum(pool, dec(t, "5000.00"), "", 1.0, 5); len(got) != 2 {
		t.Errorf("expected match within 1%% tolerance, got %v", got)
	}
	if got := FindSubsetSum(pool, dec(t, "5000.00"), "", 0.01, 5); got != nil {
		t.Errorf("expected no match at 0.01%% tolerance, got %v", got)
	}
}

func TestFindSubsetSum_SignsIgnored(t *testing.T) {
	// Bank debits arrive negative; sums are over absolute amounts.
	pool := []SumCandidate{
		cand(t, "a", "-3000.00", ""),
		cand(t, "b", "-2000.00", ""),
	}

	if got := FindSubsetSum(pool, dec(t, "5000.00"), "a", 1.0, 5); len(got) != 2 {
		t.Errorf("expected negative amounts to sum by absolute value, got %v", got)
	}
}

func TestFindSubsetSum_Deterministic(t *testing.T) {
	// Two equally valid pairs; the id-sorted order must fix the winner no
	// matter how the pool is arranged.
	forward := []SumCandidate{
		cand(t, "a", "300.00", ""),
		cand(t, "b", "200.00", ""),
		cand(t, "c", "300.00", ""),
		cand(t, "d", "200.00", ""),
	}
	reversed := []SumCandidate{forward[3], forward[2], forward[1], forward[0]}

	s1 := FindSubsetSum(forward, dec(t, "500.00"), "", 1.0, 5)
	s2 := FindSubsetSum(reversed, dec(t, "500.00"), "", 1.0, 5)

	if len(s1) != 2 || len(s2) != 2 {
		t.Fatalf("expected 2-element subsets, got %v and %v", s1, s2)
	}
	for i := range s1 {
		if s1[i].ID != s2[i].ID {
			t.Errorf("subset depends on pool order: %v vs %v", s1, s2)
		}
	}
}

func TestGroupIsRelated(t *testing.T) {
	tests := []struct {
		name         string
		descriptions []string
		personal     string
		business     string
		want         bool
	}{
		{
			name:         "shared significant words",
			descriptions: []string{"ACME TRADING PART 1", "ACME TRADING PART 2"},
			want:         true,
		},
		{
			name:         "counterparty name in one description",
			descriptions: []string{"TRANSFER 9912", "ACME TRADING LTD FINAL"},
			business:     "Acme Trading Ltd",
			want:         true,
		},
		{
			name:         "arithmetic coincidence rejected",
			descriptions: []string{"STAPLES OFFICE", "JET AVIATION"},
			personal:     "Jones",
			want:         false,
		},
		{
			name:         "single unrelated description",
			descriptions: []string{"TRANSFER 9912"},
			personal:     "Jones",
			want:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GroupIsRelated(tt.descriptions, tt.personal, tt.business); got != tt.want {
				t.Errorf("GroupIsRelated(%v) = %v, want %v", tt.descriptions, got, tt.want)
			}
		})
	}
}
