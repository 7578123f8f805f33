package crm

import (
	"net/url"
	"strings"
)

// MessageBaseURL is the third-party messaging web endpoint.
const MessageBaseURL = "https://wa.me/"

// MessageLink builds a deep link that opens a chat with phone, pre-filled
// with text. Only digits of the phone number are kept. Nothing confirms
// delivery; the link is simply opened by the client.
func MessageLink(phone, text string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", ErrMissingPhone
	}

	link := MessageBaseURL + digits
	if text != "" {
		link += "?text=" + url.QueryEscape(text)
	}
	return link, nil
}

// BirthdayGreeting is the default pre-filled text for a birthday message.
func BirthdayGreeting(c Customer) string {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return "Happy birthday!"
	}
	return "Happy birthday, " + name + "!"
}
