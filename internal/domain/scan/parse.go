package scan

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

const (
	minCodeLen = 3
	maxCodeLen = 64
)

// ParseCode extracts the bearer's short code from a decoded payload. Accepted
// shapes are a bare code, "scheme:CODE", and a URL carrying the code in its
// "code" query parameter or as its last path segment.
func ParseCode(payload string) (string, error) {
	raw := strings.TrimSpace(payload)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPayload)
	}

	code := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if q := u.Query().Get("code"); q != "" {
			code = q
		} else {
			code = path.Base(strings.TrimRight(u.Path, "/"))
		}
	} else if i := strings.LastIndexByte(raw, ':'); i >= 0 {
		code = raw[i+1:]
	}

	if err := validateCode(code); err != nil {
		return "", err
	}
	return code, nil
}

func validateCode(code string) error {
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return fmt.Errorf("%w: code length %d", ErrInvalidPayload, len(code))
	}
	for _, r := range code {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("%w: unexpected character %q", ErrInvalidPayload, r)
		}
	}
	return nil
}
