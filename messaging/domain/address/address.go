package address

import (
	"strings"

	"github.com/omnidesk/omnibridge/pkg/apperror"
)

// Canonical WhatsApp JID suffixes.
const (
	SuffixUser      = "@s.whatsapp.net"
	SuffixGroup     = "@g.us"
	SuffixLID       = "@lid"
	SuffixBroadcast = "@broadcast"
	SuffixNewletter = "@newsletter"
)

var knownSuffixes = []string{SuffixUser, SuffixGroup, SuffixLID, SuffixBroadcast, SuffixNewletter}

// NormalizeWhatsApp converts a free-form phone number or JID into a canonical
// WhatsApp address. Bare digit strings (with or without punctuation) become
// <digits>@s.whatsapp.net; an input already carrying a known suffix is
// returned unchanged, so normalization is idempotent.
func NormalizeWhatsApp(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", apperror.InvalidRecipient(raw, nil)
	}

	for _, suffix := range knownSuffixes {
		if strings.HasSuffix(trimmed, suffix) {
			local := strings.TrimSuffix(trimmed, suffix)
			if local == "" {
				return "", apperror.InvalidRecipient(raw, nil)
			}
			return trimmed, nil
		}
	}

	digits := stripNonDigits(trimmed)
	if len(digits) < 5 {
		return "", apperror.InvalidRecipient(raw, nil)
	}

	// Group ids are all-digit too but arrive with the @g.us suffix already;
	// a bare number is always a user address.
	return digits + SuffixUser, nil
}

// StripWhatsAppSuffix returns the bare digit part of a canonical WhatsApp
// address. The Cloud API wants plain phone numbers, not JIDs.
func StripWhatsAppSuffix(canonical string) string {
	if idx := strings.IndexByte(canonical, '@'); idx >= 0 {
		return canonical[:idx]
	}
	return canonical
}

// IsGroup reports whether a canonical WhatsApp address targets a group.
func IsGroup(canonical string) bool {
	return strings.HasSuffix(canonical, SuffixGroup)
}

// NormalizePlatformID validates an opaque platform-scoped user id (Facebook
// PSID, Instagram IGSID). These are already canonical; only whitespace is
// removed.
func NormalizePlatformID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", apperror.InvalidRecipient(raw, nil)
	}
	for _, r := range trimmed {
		if r == ' ' || r == '\n' || r == '\t' {
			return "", apperror.InvalidRecipient(raw, nil)
		}
	}
	return trimmed, nil
}

// NormalizeSessionID validates an ephemeral web-chat session recipient id.
func NormalizeSessionID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", apperror.InvalidRecipient(raw, nil)
	}
	return trimmed, nil
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
