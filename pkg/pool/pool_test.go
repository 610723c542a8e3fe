package pool

import "testing"

func TestConfigure(t *testing.T) {
	orig := global
	defer Configure(orig)

	t.Run("enable pooling", func(t *testing.T) {
		Configure(Config{Enabled: true, MaxSize: 500})
		if !IsEnabled() {
			t.Fatal("IsEnabled() = false, want true")
		}
	})

	t.Run("disable pooling", func(t *testing.T) {
		Configure(Config{Enabled: false, MaxSize: 1000})
		if IsEnabled() {
			t.Fatal("IsEnabled() = true, want false")
		}
		s := GetVIDSlice()
		if s == nil || len(s) != 0 {
			t.Fatalf("GetVIDSlice() with pooling disabled = %v, want empty non-nil", s)
		}
	})
}

func TestVIDSliceRoundTrip(t *testing.T) {
	Configure(Config{Enabled: true, MaxSize: 1000})
	defer Configure(Config{Enabled: true, MaxSize: 1000})

	s := GetVIDSlice()
	if len(s) != 0 {
		t.Fatalf("GetVIDSlice() len = %d, want 0", len(s))
	}
	s = append(s, 1, 2, 3)
	PutVIDSlice(s)

	s2 := GetVIDSlice()
	if len(s2) != 0 {
		t.Fatalf("reused slice len = %d, want 0", len(s2))
	}
}

func TestVIDSliceDropsOversized(t *testing.T) {
	Configure(Config{Enabled: true, MaxSize: 4})
	defer Configure(Config{Enabled: true, MaxSize: 1000})

	big := make([]uint64, 0, 100)
	PutVIDSlice(big) // should be silently dropped, not panic
}

func TestEdgeKeySliceRoundTrip(t *testing.T) {
	Configure(Config{Enabled: true, MaxSize: 1000})
	defer Configure(Config{Enabled: true, MaxSize: 1000})

	s := GetEdgeKeySlice()
	s = append(s, EdgeKey{Neighbour: 1, EdgeID: 2, Layer: 0})
	PutEdgeKeySlice(s)

	s2 := GetEdgeKeySlice()
	if len(s2) != 0 {
		t.Fatalf("reused edge key slice len = %d, want 0", len(s2))
	}
}

func TestBoolSlice(t *testing.T) {
	Configure(Config{Enabled: true, MaxSize: 1000})
	defer Configure(Config{Enabled: true, MaxSize: 1000})

	s := GetBoolSlice(8)
	if len(s) != 8 {
		t.Fatalf("GetBoolSlice(8) len = %d, want 8", len(s))
	}
	for _, v := range s {
		if v {
			t.Fatal("GetBoolSlice should be zero-valued")
		}
	}
	s[3] = true
	PutBoolSlice(s)

	s2 := GetBoolSlice(8)
	for i, v := range s2 {
		if v {
			t.Fatalf("GetBoolSlice(8)[%d] = true after reuse, want cleared", i)
		}
	}
}
