// Package domain holds pure lead domain logic: origin classification and
// lifecycle event types. No I/O lives here.
package domain

import "strings"

// Origin is the closed vocabulary of traffic origins a lead can carry.
type Origin string

const (
	OriginWhatsApp  Origin = "whatsapp"
	OriginInstagram Origin = "instagram"
	OriginFacebook  Origin = "facebook"
	OriginGoogleAds Origin = "google_ads"
	OriginSite      Origin = "site"
	OriginReferral  Origin = "indicacao"
	OriginOther     Origin = "outro"
)

var knownOrigins = map[Origin]struct{}{
	OriginWhatsApp:  {},
	OriginInstagram: {},
	OriginFacebook:  {},
	OriginGoogleAds: {},
	OriginSite:      {},
	OriginReferral:  {},
	OriginOther:     {},
}

// IsKnownOrigin reports whether the value is part of the origin vocabulary.
func IsKnownOrigin(origin Origin) bool {
	_, ok := knownOrigins[origin]
	return ok
}

// ClassifyOrigin maps UTM hints onto the origin vocabulary. Case-insensitive
// substring match, first hit wins; the check order is significant because
// hints overlap (an "ig_paid" medium on a facebook source is instagram).
// Defaults to site when nothing matches.
func ClassifyOrigin(utmSource, utmMedium string) Origin {
	source := strings.ToLower(strings.TrimSpace(utmSource))
	medium := strings.ToLower(strings.TrimSpace(utmMedium))
	combined := source + " " + medium

	switch {
	case strings.Contains(combined, "instagram"), strings.Contains(combined, "ig_"):
		return OriginInstagram
	case strings.Contains(combined, "facebook"), strings.Contains(combined, "fb_"), strings.Contains(combined, "meta"):
		return OriginFacebook
	case strings.Contains(combined, "whatsapp"), strings.Contains(combined, "wa_"):
		return OriginWhatsApp
	case strings.Contains(combined, "google"), strings.Contains(combined, "adwords"), strings.Contains(combined, "gads"):
		return OriginGoogleAds
	case strings.Contains(combined, "indicacao"), strings.Contains(combined, "referral"), strings.Contains(combined, "ref_"):
		return OriginReferral
	case source == "" && medium == "":
		return OriginSite
	case strings.Contains(combined, "site"), strings.Contains(combined, "organic"), strings.Contains(combined, "direct"):
		return OriginSite
	default:
		return OriginSite
	}
}
