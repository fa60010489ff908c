package model

import "time"

// Member is an account created on first successful authentication with the
// identity provider. LastLoginAt carries the issued-at of the most recently
// accepted auth claim and only ever moves forward.
type Member struct {
	MemberID     string    `json:"memberId"`
	Issuer       string    `json:"issuer"`
	Email        string    `json:"email"`
	LastLoginAt  int64     `json:"lastLoginAt"`
	CreationTime time.Time `json:"creationTime"`
	UpdateTime   time.Time `json:"updateTime"`
}

// LatLng is a WGS84 point.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Vault is a named, located container owned by its creator. InviteKey is the
// vault's current single-use join secret; it is unique across all vaults and
// rotates on every successful invite redemption. Location never changes after
// creation.
type Vault struct {
	VaultID      string    `json:"vaultId"`
	InviteKey    string    `json:"inviteKey"`
	Name         string    `json:"name"`
	Location     LatLng    `json:"location"`
	CreatorID    string    `json:"creatorId"`
	CreationTime time.Time `json:"creationTime"`
	UpdateTime   time.Time `json:"updateTime"`
}

// Membership records that a member belongs to a vault. At most one row per
// (vault, member) pair; rows are never updated.
type Membership struct {
	VaultID      string    `json:"vaultId"`
	MemberID     string    `json:"memberId"`
	CreationTime time.Time `json:"creationTime"`
}

// Asset is an opaque encrypted item attached to a vault. Payload holds the
// ciphertext. StorageKey is set only for media uploaded to blob storage, in
// which case the payload ciphertext wraps the blob's key/URL record.
type Asset struct {
	AssetID      string    `json:"assetId"`
	VaultID      string    `json:"vaultId"`
	UploaderID   string    `json:"uploaderId"`
	Type         string    `json:"type"`
	Payload      []byte    `json:"payload,omitempty"`
	StorageKey   *string   `json:"storageKey,omitempty"`
	CreationTime time.Time `json:"creationTime"`
}

// NearbyVault is one row of a nearest-vault query result.
type NearbyVault struct {
	VaultID        string  `json:"vaultId"`
	InviteKey      string  `json:"inviteKey"`
	Name           string  `json:"name"`
	Location       LatLng  `json:"location"`
	DistanceMeters float64 `json:"distanceMeters"`
}
