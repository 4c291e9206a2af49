package htj2k

import "testing"

// TestHTJ2KLosslessRoundTrip encodes a synthetic gradient frame with the
// HTJ2K lossless profile and verifies the decoded samples match exactly.
func TestHTJ2KLosslessRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
	}{
		{"16x16", 16, 16},
		{"64x64", 64, 64},
		{"128x128", 128, 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := tt.width * tt.height
			src := make([]byte, size)
			for i := range src {
				src[i] = byte(i % 256)
			}

			params := NewHTJ2KLosslessParameters()
			encoded, err := Encode(src, tt.width, tt.height, 1, 8, false, params, true)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			t.Logf("original %d bytes, encoded %d bytes", len(src), len(encoded))

			decoded, w, h, comps, bitDepth, signed, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if w != tt.width || h != tt.height {
				t.Errorf("dimensions: got %dx%d, want %dx%d", w, h, tt.width, tt.height)
			}
			if comps != 1 {
				t.Errorf("components: got %d, want 1", comps)
			}
			if bitDepth != 8 {
				t.Errorf("bitDepth: got %d, want 8", bitDepth)
			}
			if signed {
				t.Error("expected unsigned samples")
			}
			if len(decoded) != len(src) {
				t.Fatalf("decoded length: got %d, want %d", len(decoded), len(src))
			}
			for i := range src {
				if decoded[i] != src[i] {
					t.Fatalf("sample %d: got %d, want %d", i, decoded[i], src[i])
				}
			}
		})
	}
}

// TestHTJ2KLossyRoundTrip encodes a synthetic frame with the lossy profile
// and checks that decode succeeds and produces a full-sized frame.
func TestHTJ2KLossyRoundTrip(t *testing.T) {
	width, height := 64, 64
	src := make([]byte, width*height)
	for i := range src {
		src[i] = byte((i * 7) % 256)
	}

	params := NewHTJ2KParameters()
	params.Quality = 80
	encoded, err := Encode(src, width, height, 1, 8, false, params, false)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, w, h, _, _, _, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if w != width || h != height {
		t.Errorf("dimensions: got %dx%d, want %dx%d", w, h, width, height)
	}
	if len(decoded) != len(src) {
		t.Fatalf("decoded length: got %d, want %d", len(decoded), len(src))
	}
}

// TestHTJ2KEncodeEmptyFrame verifies that encoding an empty frame fails.
func TestHTJ2KEncodeEmptyFrame(t *testing.T) {
	_, err := Encode(nil, 8, 8, 1, 8, false, nil, true)
	if err == nil {
		t.Error("expected error encoding empty frame")
	}
}

// TestCalculateMaxLevels checks the decomposition depth cap against image size.
func TestCalculateMaxLevels(t *testing.T) {
	tests := []struct {
		width, height, want int
	}{
		{16, 16, 4},
		{64, 64, 6},
		{1, 1, 0},
		{4096, 4096, 6},
	}
	for _, tt := range tests {
		got := calculateMaxLevels(tt.width, tt.height)
		if got != tt.want {
			t.Errorf("calculateMaxLevels(%d,%d) = %d, want %d", tt.width, tt.height, got, tt.want)
		}
	}
}
