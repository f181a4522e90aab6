package model

import (
	"time"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
)

// Match is one directional row. A MATCHED pair is always stored as two rows,
// (A,B) and (B,A), sharing MatchedAt.
type Match struct {
	ID            int64             `json:"id"`
	LikerVesselID int64             `json:"liker_vessel_id"`
	LikedVesselID int64             `json:"liked_vessel_id"`
	Status        enums.MatchStatus `json:"status"`
	MatchedAt     *time.Time        `json:"matched_at,omitempty"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (m Match) IsMatched() bool {
	return m.Status == enums.MatchStatusMatched
}

// Pair returns the vessel ids ordered low, high.
func (m Match) Pair() (int64, int64) {
	return OrderedPair(m.LikerVesselID, m.LikedVesselID)
}

func (m Match) Involves(vesselID int64) bool {
	return m.LikerVesselID == vesselID || m.LikedVesselID == vesselID
}

func (m Match) Counterpart(vesselID int64) int64 {
	if m.LikerVesselID == vesselID {
		return m.LikedVesselID
	}
	return m.LikerVesselID
}

func OrderedPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}
