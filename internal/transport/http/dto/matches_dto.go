package dto

import "github.com/frogody/floatr-app-sub000/internal/domain/model"

type MatchCounterpartResponse struct {
	VesselID      int64  `json:"vessel_id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Vibe          string `json:"vibe"`
	CaptainUserID int64  `json:"captain_user_id"`
	CaptainName   string `json:"captain_name"`
}

type MatchItemResponse struct {
	Match       model.Match              `json:"match"`
	Counterpart MatchCounterpartResponse `json:"counterpart"`
}

type MatchesResponse struct {
	Items []MatchItemResponse `json:"items"`
}

type UnmatchResponse struct {
	OK      bool `json:"ok"`
	Changed bool `json:"changed"`
}

type BlockRequest struct {
	UserID int64 `json:"user_id"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
