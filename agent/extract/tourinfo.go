// Package extract pulls narrow answers (guest names, client name) out of raw
// tour payloads with rule-based probing, so common follow-up questions never
// need an oracle round-trip. Patterns are an explicit ordered list with
// first-match-wins precedence; the caller applies the acceptance gate.
package extract

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Known guest-list locations across the payload shapes the backend emits.
var guestArrayPaths = []string{
	"guests",
	"passengers",
	"travellers",
	"data.guests",
	"data.passengers",
	"guestList",
	"bookingDetails.guests",
}

var singleGuestPaths = []string{
	"guest",
	"primaryGuest",
	"data.guest",
	"client", // client info sometimes doubles as guest info
}

var clientNamePaths = []string{
	"client.name",
	"clientName",
	"data.client.name",
	"data.clientName",
}

// Specific answers a narrow question against a raw tool payload. JSON
// payloads are probed structurally; anything else falls back to line-oriented
// pattern extraction. It never calls the completion oracle.
func Specific(payload, query string) string {
	lower := strings.ToLower(query)

	if !gjson.Valid(payload) {
		return fromRawString(payload, lower)
	}
	doc := gjson.Parse(payload)

	if isGuestQuery(lower) {
		return guestInfo(doc)
	}
	if isClientQuery(lower) {
		return clientInfo(doc)
	}
	return payload
}

func isGuestQuery(lower string) bool {
	return strings.Contains(lower, "guest") ||
		strings.Contains(lower, "passenger") ||
		(strings.Contains(lower, "who") && strings.Contains(lower, "tour"))
}

func isClientQuery(lower string) bool {
	return strings.Contains(lower, "client") &&
		(strings.Contains(lower, "name") || strings.Contains(lower, "who"))
}

func guestInfo(doc gjson.Result) string {
	for _, path := range guestArrayPaths {
		arr := doc.Get(path)
		if !arr.IsArray() {
			continue
		}
		entries := arr.Array()
		if len(entries) == 0 {
			continue
		}
		lines := make([]string, 0, len(entries))
		for i, guest := range entries {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, guestName(guest)))
		}
		return fmt.Sprintf("Guests (%d found):\n%s", len(lines), strings.Join(lines, "\n"))
	}

	for _, path := range singleGuestPaths {
		guest := doc.Get(path)
		if !guest.IsObject() {
			continue
		}
		if name := objectName(guest); name != "" {
			return "Guest: " + name
		}
	}

	fields := make([]string, 0, 8)
	doc.ForEach(func(key, _ gjson.Result) bool {
		fields = append(fields, key.String())
		return true
	})
	return fmt.Sprintf("No guest information found. Available fields: %s\n\nPlease check the tour data structure or contact support.",
		strings.Join(fields, ", "))
}

// guestName resolves one guest entry across the structures the backend uses.
func guestName(guest gjson.Result) string {
	if guest.Type == gjson.String {
		return guest.String()
	}

	if name := guest.Get("name").String(); name != "" {
		return name
	}
	first := guest.Get("firstName").String()
	last := guest.Get("lastName").String()
	if first != "" && last != "" {
		return first + " " + last
	}
	if first != "" {
		return first
	}
	if name := guest.Get("guestName").String(); name != "" {
		return name
	}
	if name := guest.Get("passengerName").String(); name != "" {
		return name
	}
	for _, field := range []string{"displayName", "fullName", "title"} {
		if name := guest.Get(field).String(); name != "" {
			return name
		}
	}

	id := guest.Get("id").String()
	if id == "" {
		id = guest.Get("_id").String()
	}
	if id == "" {
		id = "Unknown"
	}
	return "Guest ID: " + id
}

func objectName(obj gjson.Result) string {
	if name := obj.Get("name").String(); name != "" {
		return name
	}
	full := strings.TrimSpace(obj.Get("firstName").String() + " " + obj.Get("lastName").String())
	if full != "" {
		return full
	}
	if name := obj.Get("guestName").String(); name != "" {
		return name
	}
	return obj.Get("displayName").String()
}

func clientInfo(doc gjson.Result) string {
	for _, path := range clientNamePaths {
		if name := doc.Get(path).String(); name != "" {
			return "Client Name: " + name
		}
	}
	return "Client name not available in tour data."
}
