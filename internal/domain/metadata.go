package domain

// UserMetadata is one directory entry for an internal identity.
type UserMetadata struct {
	OriginalName string `json:"originalName"`
	Override     string `json:"override,omitempty"`
	IsGuest      bool   `json:"isGuest"`
	IsHost       bool   `json:"isHost"`
}

// DisplayName returns the public name for this entry: the override when
// set, otherwise the directory's canonical name.
func (m UserMetadata) DisplayName() string {
	if m.Override != "" {
		return m.Override
	}
	return m.OriginalName
}

// Identity is the resolved public identity for an internal name.
type Identity struct {
	DisplayName string `json:"displayName"`
	IsGuest     bool   `json:"isGuest"`
	IsHost      bool   `json:"isHost"`
}
