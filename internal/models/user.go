package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AuthMethodEmail  = "email"
	AuthMethodGoogle = "google"
	AuthMethodBoth   = "both"
)

// User represents an account. Password holds the bcrypt hash and is never serialized.
type User struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Username    string               `bson:"username" json:"username"`
	Email       string               `bson:"email" json:"email"`
	Password    string               `bson:"password,omitempty" json:"-"`
	FullName    string               `bson:"fullName" json:"fullName"`
	PhoneNumber string               `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	ImgURL      string               `bson:"imgUrl,omitempty" json:"imgUrl,omitempty"`
	GoogleID    string               `bson:"googleId,omitempty" json:"googleId,omitempty"`
	AuthMethod  string               `bson:"authMethod" json:"authMethod"`
	IsAdmin     bool                 `bson:"isAdmin" json:"isAdmin"`
	Score       int                  `bson:"score" json:"score"`
	UserColor   string               `bson:"userColor,omitempty" json:"userColor,omitempty"`
	Friends     []primitive.ObjectID `bson:"friends" json:"friends"`
	FcmTokens   []string             `bson:"fcmTokens,omitempty" json:"-"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	LastActive  *time.Time           `bson:"lastActive,omitempty" json:"lastActive,omitempty"`
}

// HasFriend reports whether id is in the user's friends set.
func (u *User) HasFriend(id primitive.ObjectID) bool {
	for _, f := range u.Friends {
		if f == id {
			return true
		}
	}
	return false
}

// Mini returns the reduced projection used in lists.
func (u *User) Mini() *MiniUser {
	return &MiniUser{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		ImgURL:    u.ImgURL,
		UserColor: u.UserColor,
	}
}

// MiniUser is the public summary of a user.
type MiniUser struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	Username  string             `bson:"username" json:"username,omitempty"`
	FullName  string             `bson:"fullName" json:"fullName,omitempty"`
	ImgURL    string             `bson:"imgUrl,omitempty" json:"imgUrl,omitempty"`
	UserColor string             `bson:"userColor,omitempty" json:"userColor,omitempty"`
}

// UserUpdate carries the fields a user may change on their profile.
type UserUpdate struct {
	FullName    *string `json:"fullName,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	Score       *int    `json:"score,omitempty"`
	UserColor   *string `json:"userColor,omitempty"`
}

// SignupCredentials is the payload of a password signup.
type SignupCredentials struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	ImgURL   string `json:"imgUrl,omitempty"`
}
