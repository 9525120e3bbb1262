package keyvault

import "testing"

func TestNormalizeDomain(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"user", "USER", false},
		{"  user  ", "USER", false},
		{"tenant-1", "TENANT-1", false},
		{"tenant_1", "TENANT_1", false},
		{"", "", true},
		{"   ", "", true},
		{"bad domain", "", true},
		{"bad!domain", "", true},
	}
	for _, c := range cases {
		got, err := NormalizeDomain(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("NormalizeDomain(%q): expected error, got %q", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeDomain(%q): unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
