package quiet

import (
	"strings"
	"time"
)

// regionZones maps a contact's region hint to a representative IANA zone
// when no explicit time zone is stored on the contact.
var regionZones = map[string]string{
	"US": "America/New_York",
	"CA": "America/Toronto",
	"GB": "Europe/London",
	"IE": "Europe/Dublin",
	"DE": "Europe/Berlin",
	"FR": "Europe/Paris",
	"ES": "Europe/Madrid",
	"TR": "Europe/Istanbul",
	"IN": "Asia/Kolkata",
	"JP": "Asia/Tokyo",
	"SG": "Asia/Singapore",
	"AU": "Australia/Sydney",
	"NZ": "Pacific/Auckland",
	"BR": "America/Sao_Paulo",
	"MX": "America/Mexico_City",
}

// LocationFor resolves the recipient's local time zone. Explicit IANA
// zone wins, then the region hint, then UTC. Resolution never fails; an
// unknown zone just degrades to UTC.
func LocationFor(timeZone, region string) *time.Location {
	if tz := strings.TrimSpace(timeZone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}

	if name, ok := regionZones[strings.ToUpper(strings.TrimSpace(region))]; ok {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}

	return time.UTC
}
