package usecases

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"intakehub/internal/entities"
)

// ParseICS extracts VEVENTs from an iCalendar payload. The payload may be
// plain text or base64 (common for email attachments). Line continuations
// are unfolded and text escapes decoded per RFC 5545.
func ParseICS(data string) ([]entities.CalendarEvent, error) {
	text := strings.TrimSpace(data)
	if text == "" {
		return nil, fmt.Errorf("empty calendar payload")
	}
	if !strings.Contains(text, "BEGIN:VCALENDAR") {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(text, "\n", ""))
		if err != nil || !strings.Contains(string(decoded), "BEGIN:VCALENDAR") {
			return nil, fmt.Errorf("payload is not an iCalendar document")
		}
		text = string(decoded)
	}

	lines := unfoldICSLines(text)

	var events []entities.CalendarEvent
	var method string
	var current *entities.CalendarEvent

	for _, line := range lines {
		name, params, value := splitICSLine(line)
		switch name {
		case "BEGIN":
			if value == "VEVENT" {
				current = &entities.CalendarEvent{Method: method}
			}
			continue
		case "END":
			if value == "VEVENT" && current != nil {
				events = append(events, *current)
				current = nil
			}
			continue
		case "METHOD":
			method = value
			continue
		}
		if current == nil {
			continue
		}

		switch name {
		case "UID":
			current.UID = value
		case "SUMMARY":
			current.Summary = unescapeICS(value)
		case "DESCRIPTION":
			current.Description = unescapeICS(value)
		case "LOCATION":
			current.Location = unescapeICS(value)
		case "DTSTART":
			if t, allDay, err := parseICSTime(value, params); err == nil {
				current.Start = t
				current.AllDay = allDay
			}
		case "DTEND":
			if t, _, err := parseICSTime(value, params); err == nil {
				current.End = t
			}
		case "ORGANIZER":
			current.Organizer = normalizeCalAddress(value)
		case "ATTENDEE":
			if addr := normalizeCalAddress(value); addr != "" {
				current.Attendees = append(current.Attendees, addr)
			}
		case "STATUS":
			current.Status = value
		case "SEQUENCE":
			if n, err := strconv.Atoi(value); err == nil {
				current.Sequence = n
			}
		}
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("no VEVENT in calendar payload")
	}
	return events, nil
}

// unfoldICSLines joins folded lines: a line starting with space or tab
// continues the previous one.
func unfoldICSLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// splitICSLine separates "NAME;PARAM=X:VALUE" into its parts.
func splitICSLine(line string) (name string, params map[string]string, value string) {
	params = map[string]string{}
	idx := strings.Index(line, ":")
	if idx < 0 {
		return strings.ToUpper(line), params, ""
	}
	value = line[idx+1:]

	head := line[:idx]
	parts := strings.Split(head, ";")
	name = strings.ToUpper(parts[0])
	for _, p := range parts[1:] {
		if eq := strings.Index(p, "="); eq > 0 {
			params[strings.ToUpper(p[:eq])] = p[eq+1:]
		}
	}
	return name, params, value
}

func unescapeICS(s string) string {
	r := strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)
	return r.Replace(s)
}

// parseICSTime handles both compact dates (YYYYMMDD, all-day) and
// timestamped forms (YYYYMMDDTHHMMSS with optional trailing Z for UTC).
func parseICSTime(value string, params map[string]string) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if params["VALUE"] == "DATE" || len(value) == 8 {
		t, err := time.Parse("20060102", value)
		return t, true, err
	}
	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse("20060102T150405Z", value)
		return t, false, err
	}
	t, err := time.Parse("20060102T150405", value)
	return t, false, err
}

// normalizeCalAddress strips the mailto: prefix and case-folds the address.
func normalizeCalAddress(value string) string {
	addr := strings.TrimSpace(value)
	addr = strings.TrimPrefix(strings.ToLower(addr), "mailto:")
	return addr
}
