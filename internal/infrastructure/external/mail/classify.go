package mail

import "strings"

// permanentMarkers are SMTP reply fragments that indicate the recipient
// will never accept this message. Anything else is treated as transient.
var permanentMarkers = []string{
	"550",
	"553",
	"554",
	"invalid recipient",
	"user unknown",
	"mailbox unavailable",
	"no such user",
}

// IsPermanent classifies an SMTP delivery error as unretryable
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
