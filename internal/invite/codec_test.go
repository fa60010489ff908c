package invite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTrip(t *testing.T) {
	in := Invite{VaultID: "5f1c9b1e-9a2f-4f2e-8a43-1d2f3c4b5a69", InviteKey: "0e8df1b2-7c3d-4e5f-9a1b-2c3d4e5f6a7b"}
	out, err := Decode(in.Payload())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeDataURL(t *testing.T) {
	url, err := EncodeDataURL(Invite{VaultID: "v1", InviteKey: "k1"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
	assert.Greater(t, len(url), len("data:image/png;base64,"))
}

func TestEncodeDataURLRejectsIncompleteInvite(t *testing.T) {
	_, err := EncodeDataURL(Invite{VaultID: "v1"})
	assert.Error(t, err)
	_, err = EncodeDataURL(Invite{InviteKey: "k1"})
	assert.Error(t, err)
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	for _, payload := range []string{"", "id=only", "key=only", "%zz"} {
		_, err := Decode(payload)
		assert.Error(t, err, "payload %q", payload)
	}
}
