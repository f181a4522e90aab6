package model

import (
	"time"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
)

type Swipe struct {
	ID             int64             `json:"id"`
	ActingVesselID int64             `json:"acting_vessel_id"`
	TargetVesselID int64             `json:"target_vessel_id"`
	Action         enums.SwipeAction `json:"action"`
	CreatedAt      time.Time         `json:"created_at"`
}
