package appointments

import (
	"fmt"
	"strings"
	"time"
)

const defaultAppointmentDuration = 30 * time.Minute

// CalendarInvite renders an iCalendar confirmation for a recorded
// appointment, suitable for attaching to a confirmation email.
func CalendarInvite(details Details, result Result, start time.Time) string {
	end := start.Add(defaultAppointmentDuration)

	var b strings.Builder
	writeICSLine(&b, "BEGIN:VCALENDAR")
	writeICSLine(&b, "VERSION:2.0")
	writeICSLine(&b, "PRODID:-//KarunaBot//Citas//ES")
	writeICSLine(&b, "METHOD:REQUEST")
	writeICSLine(&b, "BEGIN:VEVENT")
	writeICSLine(&b, "UID:"+result.MeetingRef)
	writeICSLine(&b, "DTSTAMP:"+time.Now().UTC().Format("20060102T150405Z"))
	writeICSLine(&b, "DTSTART:"+start.UTC().Format("20060102T150405Z"))
	writeICSLine(&b, "DTEND:"+end.UTC().Format("20060102T150405Z"))
	writeICSLine(&b, "SUMMARY:"+escapeICSText(fmt.Sprintf("Cita con %s", details.Name)))
	if details.Service != "" {
		writeICSLine(&b, "DESCRIPTION:"+escapeICSText(details.Service))
	}
	if result.MeetLink != "" {
		writeICSLine(&b, "LOCATION:"+escapeICSText(result.MeetLink))
	}
	writeICSLine(&b, "END:VEVENT")
	writeICSLine(&b, "END:VCALENDAR")
	return b.String()
}

func writeICSLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteString("\r\n")
}

func escapeICSText(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}
