//go:build integration

package integration

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
)

var userSeq atomic.Int64

// TestUser generates unique test user credentials
func TestUser(suffix string) (username, email, password string) {
	n := userSeq.Add(1)
	ts := time.Now().Unix()
	username = fmt.Sprintf("user%d%s", n, suffix)
	email = fmt.Sprintf("test-%d-%d-%s@example.com", ts, n, suffix)
	password = "TestPassword123!"
	return
}

var otpPattern = regexp.MustCompile(`\b(\d{6})\b`)

// ExtractOTPFromEmail finds the six-digit code in a verification email body
func ExtractOTPFromEmail(body string) string {
	m := otpPattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractResetTokenFromEmail finds the token at the end of the reset link
func ExtractResetTokenFromEmail(body string) string {
	const marker = "/reset-password/"
	idx := strings.Index(body, marker)
	if idx < 0 {
		return ""
	}
	rest := body[idx+len(marker):]
	if end := strings.IndexAny(rest, " \r\n\"<"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}
