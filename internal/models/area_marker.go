package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultMarkerRadius is used when a marker is added without a radius.
const DefaultMarkerRadius = 500.0

// Position stores the coordinate twice so clients using either naming can read it.
type Position struct {
	Lat       float64 `bson:"lat" json:"lat"`
	Lng       float64 `bson:"lng" json:"lng"`
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// Normalized mirrors lat/lng into latitude/longitude.
func (p Position) Normalized() Position {
	p.Latitude = p.Lat
	p.Longitude = p.Lng
	return p
}

type AreaMarker struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Position    Position           `bson:"position" json:"position"`
	Title       string             `bson:"title,omitempty" json:"title,omitempty"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Color       int                `bson:"color,omitempty" json:"color,omitempty"`
	Icon        string             `bson:"icon,omitempty" json:"icon,omitempty"`
	Radius      float64            `bson:"radius" json:"radius"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	CreatedBy   string             `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
}

// AreaMarkerUpdate is a partial update; nil fields are left untouched.
type AreaMarkerUpdate struct {
	Position    *Position `json:"position,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Color       *int      `json:"color,omitempty"`
	Icon        *string   `json:"icon,omitempty"`
	Radius      *float64  `json:"radius,omitempty"`
}
