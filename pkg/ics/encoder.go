package ics

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultProdID identifies this product in generated calendars
const DefaultProdID = "-//meetpoll//EN"

const (
	timestampLayout = "20060102T150405Z"
	maxLineOctets   = 75
)

// Event is the calendar payload to render. All times are converted to UTC
// before formatting.
type Event struct {
	ID          uuid.UUID
	Title       string
	Description string
	Location    string
	Organizer   string // email address
	OrganizerCN string // display name
	StartsAt    time.Time
	EndsAt      time.Time
	CreatedAt   time.Time
	Cancelled   bool
}

// Encoder renders events as RFC 5545 iCalendar documents
type Encoder struct {
	ProdID string
}

// NewEncoder creates an encoder with the given product identifier.
// An empty prodID falls back to DefaultProdID.
func NewEncoder(prodID string) *Encoder {
	if prodID == "" {
		prodID = DefaultProdID
	}
	return &Encoder{ProdID: prodID}
}

// Encode renders the event as a single-VEVENT calendar. Property order is
// fixed and every timestamp is UTC, so encoding the same event twice yields
// byte-identical output.
func (e *Encoder) Encode(event Event) []byte {
	status := "CONFIRMED"
	if event.Cancelled {
		status = "CANCELLED"
	}

	var buf bytes.Buffer
	writeLine(&buf, "BEGIN:VCALENDAR")
	writeLine(&buf, "VERSION:2.0")
	writeLine(&buf, "PRODID:"+e.ProdID)
	writeLine(&buf, "BEGIN:VEVENT")
	writeLine(&buf, fmt.Sprintf("UID:%s@meetpoll", event.ID))
	writeLine(&buf, "DTSTAMP:"+event.CreatedAt.UTC().Format(timestampLayout))
	writeLine(&buf, "DTSTART:"+event.StartsAt.UTC().Format(timestampLayout))
	writeLine(&buf, "DTEND:"+event.EndsAt.UTC().Format(timestampLayout))
	writeLine(&buf, "SUMMARY:"+escapeText(event.Title))
	if event.Description != "" {
		writeLine(&buf, "DESCRIPTION:"+escapeText(event.Description))
	}
	if event.Location != "" {
		writeLine(&buf, "LOCATION:"+escapeText(event.Location))
	}
	if event.Organizer != "" {
		writeLine(&buf, fmt.Sprintf("ORGANIZER;CN=%s:MAILTO:%s", escapeText(event.OrganizerCN), event.Organizer))
	}
	writeLine(&buf, "STATUS:"+status)
	writeLine(&buf, "SEQUENCE:0")
	writeLine(&buf, "END:VEVENT")
	writeLine(&buf, "END:VCALENDAR")
	return buf.Bytes()
}

// writeLine folds the content line at 75 octets and terminates it with CRLF.
// Continuation lines start with a single space per RFC 5545 §3.1.
func writeLine(buf *bytes.Buffer, line string) {
	octets := []byte(line)
	first := true
	for len(octets) > 0 {
		limit := maxLineOctets
		if !first {
			limit = maxLineOctets - 1 // room for the leading space
			buf.WriteString("\r\n ")
		}
		if len(octets) <= limit {
			buf.Write(octets)
			break
		}
		cut := limit
		// never split a UTF-8 sequence
		for cut > 0 && octets[cut]&0xC0 == 0x80 {
			cut--
		}
		buf.Write(octets[:cut])
		octets = octets[cut:]
		first = false
	}
	buf.WriteString("\r\n")
}

// escapeText escapes TEXT property values: backslash first, then the
// characters it introduces.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\r\n", `\n`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
