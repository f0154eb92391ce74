package models

// Direction selects which side of a friend request a user is on.
type Direction int

const (
	DirectionReceived Direction = iota
	DirectionSent
	DirectionEither
)
