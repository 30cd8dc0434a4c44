package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIPOrDefault(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		want string
	}{
		{"ipv4", "192.0.2.10", "192.0.2.10"},
		{"ipv6", "2001:db8::1", "2001:db8::1"},
		{"ipv6 zone", "fe80::1%eth0", "fe80::1"},
		{"ipv4 mapped", "::ffff:192.0.2.10", "192.0.2.10"},
		{"padded", " 192.0.2.10 ", "192.0.2.10"},
		{"empty", "", "unknown"},
		{"garbage", "not-an-ip", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetIPOrDefault(tt.ip, "unknown"))
		})
	}
}
