package domain

import "time"

// Account is a registered user.
type Account struct {
	ID                 string    `json:"_id"`
	Fullname           string    `json:"fullname"`
	Email              string    `json:"email"`
	WalletAddress      string    `json:"walletAddress"`
	PasswordHash       string    `json:"-"`
	RefreshToken       *string   `json:"-"`
	Avatar             string    `json:"avatar,omitempty"`
	IsVotingTopicOwner bool      `json:"isVotingTopicOwner"`
	ProfileID          *string   `json:"profileId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// TokenPair is issued on login.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
