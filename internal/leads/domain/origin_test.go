package domain

import "testing"

func TestClassifyOriginFirstMatchWins(t *testing.T) {
	// instagram is checked before facebook: a paid IG campaign routed through
	// the facebook ads manager still counts as instagram.
	got := ClassifyOrigin("facebook", "ig_paid")
	if got != OriginInstagram {
		t.Fatalf("expected %q, got %q", OriginInstagram, got)
	}
}

func TestClassifyOriginTable(t *testing.T) {
	cases := []struct {
		source string
		medium string
		want   Origin
	}{
		{"Instagram", "", OriginInstagram},
		{"", "instagram_bio", OriginInstagram},
		{"facebook", "cpc", OriginFacebook},
		{"FB_ads", "", OriginFacebook},
		{"meta", "paid", OriginFacebook},
		{"whatsapp", "", OriginWhatsApp},
		{"", "wa_broadcast", OriginWhatsApp},
		{"google", "cpc", OriginGoogleAds},
		{"adwords", "", OriginGoogleAds},
		{"referral", "", OriginReferral},
		{"indicacao", "", OriginReferral},
		{"", "", OriginSite},
		{"newsletter", "email", OriginSite},
		{"site", "organic", OriginSite},
	}

	for _, tc := range cases {
		got := ClassifyOrigin(tc.source, tc.medium)
		if got != tc.want {
			t.Fatalf("ClassifyOrigin(%q, %q) = %q, want %q", tc.source, tc.medium, got, tc.want)
		}
	}
}

func TestClassifyOriginIsTotal(t *testing.T) {
	// whatever the hints, the result is always a known origin
	inputs := []struct{ source, medium string }{
		{"???", "###"},
		{"  ", "\t"},
		{"ARBITRARY", "junk-value"},
		{"googleinstagram", ""},
	}
	for _, in := range inputs {
		got := ClassifyOrigin(in.source, in.medium)
		if !IsKnownOrigin(got) {
			t.Fatalf("ClassifyOrigin(%q, %q) returned unknown origin %q", in.source, in.medium, got)
		}
	}
}
