package validations

import (
	"testing"

	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name    string
		desc    channel.ConnectionDescriptor
		wantErr bool
	}{
		{
			name: "whatsapp socket needs only an id",
			desc: channel.ConnectionDescriptor{ID: 1, Type: channel.TypeWhatsApp},
		},
		{
			name: "webchat needs only an id",
			desc: channel.ConnectionDescriptor{ID: 1, Type: channel.TypeWebChat},
		},
		{
			name: "cloud api complete",
			desc: channel.ConnectionDescriptor{ID: 1, Type: channel.TypeWhatsAppCloud, Credentials: channel.Credentials{
				Token: "tok", PhoneNumberID: "555", BusinessID: "999",
			}},
		},
		{
			name: "cloud api missing business id",
			desc: channel.ConnectionDescriptor{ID: 1, Type: channel.TypeWhatsAppCloud, Credentials: channel.Credentials{
				Token: "tok", PhoneNumberID: "555",
			}},
			wantErr: true,
		},
		{
			name: "facebook missing page id",
			desc: channel.ConnectionDescriptor{ID: 1, Type: channel.TypeFacebook, Credentials: channel.Credentials{
				Token: "tok",
			}},
			wantErr: true,
		},
		{
			name: "instagram complete",
			desc: channel.ConnectionDescriptor{ID: 1, Type: channel.TypeInstagram, Credentials: channel.Credentials{
				Token: "tok", InstagramID: "178",
			}},
		},
		{
			name:    "zero id rejected",
			desc:    channel.ConnectionDescriptor{Type: channel.TypeWebChat},
			wantErr: true,
		},
		{
			name:    "unknown channel type rejected",
			desc:    channel.ConnectionDescriptor{ID: 1, Type: channel.ChannelType("carrier-pigeon")},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCredentials(tc.desc)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperror.CodeConfiguration, apperror.CodeOf(err))
				return
			}
			require.NoError(t, err)
		})
	}
}
