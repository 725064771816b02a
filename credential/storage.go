package credential

import (
	"encoding/json"
	"fmt"
	"time"
)

// storedEntryVersion guards forward compatibility: records written with a
// higher version are rejected, never misread.
const storedEntryVersion = 1

// storedEntry is the versioned wire format for a persisted cache entry.
type storedEntry struct {
	Version      int    `json:"version"`
	Kind         string `json:"kind"`
	Authority    string `json:"authority"`
	Resource     string `json:"resource,omitempty"`
	ClientID     string `json:"client_id"`
	FamilyID     string `json:"family_id,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresOn    int64  `json:"expires_on,omitempty"` // Unix seconds

	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	TenantID    string `json:"tenant_id,omitempty"`
}

func kindFromString(s string) (TokenKind, error) {
	switch s {
	case "access_token":
		return AccessToken, nil
	case "refresh_token":
		return RefreshToken, nil
	case "multi_resource_refresh_token":
		return MultiResourceRefreshToken, nil
	case "family_refresh_token":
		return FamilyRefreshToken, nil
	default:
		return 0, fmt.Errorf("%w: unknown token kind %q", ErrInvalidEntry, s)
	}
}

// Serialize encodes the entry into its persisted record format.
func (e *CacheEntry) Serialize() ([]byte, error) {
	stored := &storedEntry{
		Version:      storedEntryVersion,
		Kind:         e.Kind.String(),
		Authority:    e.Authority,
		Resource:     e.Resource,
		ClientID:     e.ClientID,
		FamilyID:     e.FamilyID,
		AccessToken:  e.AccessToken,
		RefreshToken: e.RefreshToken,
	}
	if !e.ExpiresOn.IsZero() {
		stored.ExpiresOn = e.ExpiresOn.Unix()
	}
	if e.UserInfo != nil {
		stored.UserID = e.UserInfo.UserID
		stored.DisplayName = e.UserInfo.DisplayName
		stored.TenantID = e.UserInfo.TenantID
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return data, nil
}

// Deserialize decodes a persisted record back into a CacheEntry. The decoded
// entry is re-validated so corrupted records fail loudly instead of flowing
// back to callers.
func Deserialize(data []byte) (*CacheEntry, error) {
	var stored storedEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	if stored.Version > storedEntryVersion {
		return nil, fmt.Errorf("%w: record version %d, supported up to %d",
			ErrFutureVersion, stored.Version, storedEntryVersion)
	}

	kind, err := kindFromString(stored.Kind)
	if err != nil {
		return nil, err
	}

	e := &CacheEntry{
		Kind:         kind,
		Authority:    stored.Authority,
		Resource:     stored.Resource,
		ClientID:     stored.ClientID,
		FamilyID:     stored.FamilyID,
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
	}
	if stored.ExpiresOn != 0 {
		e.ExpiresOn = time.Unix(stored.ExpiresOn, 0).UTC()
	}
	if stored.UserID != "" || stored.DisplayName != "" || stored.TenantID != "" {
		e.UserInfo = &UserInfo{
			UserID:      stored.UserID,
			DisplayName: stored.DisplayName,
			TenantID:    stored.TenantID,
		}
	}

	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}
