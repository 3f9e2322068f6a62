package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEndpointURL(t *testing.T) {
	cases := []struct {
		name   string
		url    string
		wantOK bool
	}{
		{"public ip literal", "https://93.184.216.34/fixmarket", true},
		{"bad scheme", "ftp://example.com/hook", false},
		{"no host", "https:///hook", false},
		{"not a url", "://", false},
		{"localhost", "http://localhost:8080/hook", false},
		{"metadata host", "http://metadata.google.internal/computeMetadata", false},
		{"loopback literal", "http://127.0.0.1/hook", false},
		{"ipv6 loopback", "http://[::1]/hook", false},
		{"private literal", "http://10.0.0.5/hook", false},
		{"link-local literal", "http://169.254.169.254/latest/meta-data", false},
		{"unspecified", "http://0.0.0.0/hook", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateEndpointURL(tc.url)
			if tc.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
