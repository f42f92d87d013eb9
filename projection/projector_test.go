package projection

import (
	"testing"
)

func TestIndexMapProjector_RoundTrip(t *testing.T) {
	p, err := NewIndexMapProjector(6, []int{4, 1, 4, 2})
	if err != nil {
		t.Fatalf("NewIndexMapProjector() error = %v", err)
	}

	if got := p.OriginalDim(); got != 6 {
		t.Fatalf("OriginalDim() = %d, want 6", got)
	}
	if got := p.ProjectedDim(); got != 3 {
		t.Fatalf("ProjectedDim() = %d, want 3 (duplicates collapse)", got)
	}

	original := []float32{0, 10, 20, 0, 40, 0}
	projected := p.ProjectForward(original)

	// Projected indices follow ascending original order: 1, 2, 4.
	want := []float32{10, 20, 40}
	for i := range want {
		if projected[i] != want[i] {
			t.Fatalf("ProjectForward() = %v, want %v", projected, want)
		}
	}

	restored := p.ProjectBackward(projected)
	for i := range original {
		if restored[i] != original[i] {
			t.Fatalf("round trip = %v, want %v", restored, original)
		}
	}
}

func TestIndexMapProjector_BackwardZeroFills(t *testing.T) {
	p, err := NewIndexMapProjector(4, []int{1, 3})
	if err != nil {
		t.Fatalf("NewIndexMapProjector() error = %v", err)
	}

	back := p.ProjectBackward([]float32{5, -2})
	want := []float32{0, 5, 0, -2}
	for i := range want {
		if back[i] != want[i] {
			t.Fatalf("ProjectBackward() = %v, want %v", back, want)
		}
	}
}

func TestIndexMapProjector_OriginalToProjected(t *testing.T) {
	p, err := NewIndexMapProjector(5, []int{0, 3})
	if err != nil {
		t.Fatalf("NewIndexMapProjector() error = %v", err)
	}

	cases := []struct {
		original int
		want     int
	}{
		{0, 0},
		{3, 1},
		{1, -1},
		{4, -1},
	}
	for _, tc := range cases {
		if got := p.OriginalToProjected(tc.original); got != tc.want {
			t.Fatalf("OriginalToProjected(%d) = %d, want %d", tc.original, got, tc.want)
		}
	}
}

func TestIndexMapProjector_Validation(t *testing.T) {
	if _, err := NewIndexMapProjector(0, nil); err == nil {
		t.Fatal("NewIndexMapProjector(0, nil) error = nil, want error")
	}
	if _, err := NewIndexMapProjector(4, []int{4}); err == nil {
		t.Fatal("out-of-range observed index: error = nil, want error")
	}
	if _, err := NewIndexMapProjector(4, []int{-1}); err == nil {
		t.Fatal("negative observed index: error = nil, want error")
	}
}

func TestIndexMapProjector_EmptyObserved(t *testing.T) {
	p, err := NewIndexMapProjector(3, nil)
	if err != nil {
		t.Fatalf("NewIndexMapProjector() error = %v", err)
	}

	if got := p.ProjectedDim(); got != 0 {
		t.Fatalf("ProjectedDim() = %d, want 0", got)
	}

	back := p.ProjectBackward(nil)
	for i, v := range back {
		if v != 0 {
			t.Fatalf("ProjectBackward(nil)[%d] = %v, want 0", i, v)
		}
	}
}
