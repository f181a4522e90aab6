package enums

type MatchStatus string

const (
	MatchStatusPending MatchStatus = "PENDING"
	MatchStatusMatched MatchStatus = "MATCHED"
	MatchStatusExpired MatchStatus = "EXPIRED"
)
