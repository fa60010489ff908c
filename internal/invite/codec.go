// Package invite encodes vault invites as QR images and decodes scanned
// invite strings. The payload is a query string, "id=<vaultId>&key=<inviteKey>",
// rendered as a PNG data URL so clients can display it directly.
package invite

import (
	"encoding/base64"
	"net/url"

	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSizePixels = 256

// Invite is the decoded content of a scanned invite QR.
type Invite struct {
	VaultID   string
	InviteKey string
}

// Payload returns the raw string embedded in the QR image.
func (i Invite) Payload() string {
	v := url.Values{}
	v.Set("id", i.VaultID)
	v.Set("key", i.InviteKey)
	return v.Encode()
}

// EncodeDataURL renders the invite as a PNG QR code wrapped in a
// data:image/png;base64 URL.
func EncodeDataURL(i Invite) (string, error) {
	if i.VaultID == "" || i.InviteKey == "" {
		return "", errors.New("invite requires a vault id and key")
	}
	png, err := qrcode.Encode(i.Payload(), qrcode.Medium, qrSizePixels)
	if err != nil {
		return "", errors.Wrap(err, "render invite qr")
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// Decode parses a scanned invite payload back into its parts.
func Decode(payload string) (Invite, error) {
	v, err := url.ParseQuery(payload)
	if err != nil {
		return Invite{}, errors.Wrap(err, "malformed invite payload")
	}
	out := Invite{VaultID: v.Get("id"), InviteKey: v.Get("key")}
	if out.VaultID == "" || out.InviteKey == "" {
		return Invite{}, errors.New("invite payload missing id or key")
	}
	return out, nil
}
