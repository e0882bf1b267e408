package cryptoutil

import "testing"

func TestSHA256Hex(t *testing.T) {
	tests := map[string]string{
		"":    "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"abc": "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
	}
	for in, want := range tests {
		if got := SHA256Hex([]byte(in)); got != want {
			t.Errorf("SHA256Hex(%q) = %s", in, got)
		}
	}
}

func TestHashEqual(t *testing.T) {
	h := SHA256Hex([]byte("bundle"))
	tests := []struct {
		a, b string
		want bool
	}{
		{h, h, true},
		{h, "  " + h, false},
		{"ABCDEF", "abcdef", true},
		{h, h[:len(h)-1], false},
		{h[:len(h)-1] + "0", h[:len(h)-1] + "1", false},
		{"", "", true},
	}
	for _, tt := range tests {
		if got := HashEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("HashEqual(%q, %q) = %v", tt.a, tt.b, got)
		}
	}
}
