package model

type Vessel struct {
	ID            int64        `json:"id"`
	CaptainUserID int64        `json:"captain_user_id"`
	Name          string       `json:"name"`
	Type          string       `json:"type"`
	Capacity      int          `json:"capacity"`
	Vibe          string       `json:"vibe"`
	Active        bool         `json:"active"`
	Amenities     []string     `json:"amenities"`
	Crew          []CrewMember `json:"crew"`
	Captain       Captain      `json:"captain"`
}

// Discoverable reports whether both the vessel and its captain are active.
func (v Vessel) Discoverable() bool {
	return v.Active && v.Captain.Active
}

type Captain struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarKey   string `json:"avatar_key"`
	Active      bool   `json:"active"`
}

type CrewMember struct {
	Name      string `json:"name"`
	AvatarKey string `json:"avatar_key"`
}

type DiscoveryPreferences struct {
	UserID int64    `json:"user_id"`
	Vibes  []string `json:"vibes"`
	Types  []string `json:"types"`
}

type Block struct {
	BlockerUserID int64 `json:"blocker_user_id"`
	BlockedUserID int64 `json:"blocked_user_id"`
}
