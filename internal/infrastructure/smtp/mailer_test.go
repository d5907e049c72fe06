package smtp

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMessage_Headers(t *testing.T) {
	from := mail.Address{Name: "OTP VERIFICATION", Address: "noreply@x.com"}
	msg := string(buildMessage(from, "a@x.com", "Your Login OTP", "<p>123456</p>"))

	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	assert.True(t, ok)
	assert.Contains(t, head, `From: "OTP VERIFICATION" <noreply@x.com>`)
	assert.Contains(t, head, "To: a@x.com")
	assert.Contains(t, head, "Subject: Your Login OTP")
	assert.Contains(t, head, "Content-Type: text/html")
	assert.Equal(t, "<p>123456</p>", body)
}

func TestBuildMessage_NoDisplayName(t *testing.T) {
	msg := string(buildMessage(mail.Address{Address: "noreply@x.com"}, "a@x.com", "s", "b"))
	assert.Contains(t, msg, "From: <noreply@x.com>\r\n")
}
