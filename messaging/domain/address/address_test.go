package address

import (
	"testing"

	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWhatsApp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare digits", "5215512345678", "5215512345678@s.whatsapp.net"},
		{"plus and dashes", "+52 1 55-1234-5678", "5215512345678@s.whatsapp.net"},
		{"already canonical user", "5215512345678@s.whatsapp.net", "5215512345678@s.whatsapp.net"},
		{"group jid untouched", "123456789-987654@g.us", "123456789-987654@g.us"},
		{"lid jid untouched", "98765432101@lid", "98765432101@lid"},
		{"surrounding whitespace", "  5215512345678  ", "5215512345678@s.whatsapp.net"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeWhatsApp(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeWhatsAppIsIdempotent(t *testing.T) {
	once, err := NormalizeWhatsApp("+52 155 1234 5678")
	require.NoError(t, err)
	twice, err := NormalizeWhatsApp(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestNormalizeWhatsAppRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "   ", "abc", "12", "@s.whatsapp.net"} {
		_, err := NormalizeWhatsApp(input)
		require.Error(t, err, "input %q", input)
		assert.Equal(t, apperror.CodeInvalidRecipient, apperror.CodeOf(err))
	}
}

func TestStripWhatsAppSuffix(t *testing.T) {
	assert.Equal(t, "5215512345678", StripWhatsAppSuffix("5215512345678@s.whatsapp.net"))
	assert.Equal(t, "5215512345678", StripWhatsAppSuffix("5215512345678"))
}

func TestIsGroup(t *testing.T) {
	assert.True(t, IsGroup("123456789-987654@g.us"))
	assert.False(t, IsGroup("5215512345678@s.whatsapp.net"))
}

func TestNormalizePlatformID(t *testing.T) {
	got, err := NormalizePlatformID("  24061234567890123  ")
	require.NoError(t, err)
	assert.Equal(t, "24061234567890123", got)

	for _, input := range []string{"", "   ", "psid with space"} {
		_, err := NormalizePlatformID(input)
		require.Error(t, err, "input %q", input)
		assert.Equal(t, apperror.CodeInvalidRecipient, apperror.CodeOf(err))
	}
}

func TestNormalizeSessionID(t *testing.T) {
	got, err := NormalizeSessionID(" 0c1de2f3 ")
	require.NoError(t, err)
	assert.Equal(t, "0c1de2f3", got)

	_, err = NormalizeSessionID("   ")
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidRecipient, apperror.CodeOf(err))
}
