package api

import "time"

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type signinResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Allowed   bool      `json:"allowed"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type getUserResponse struct {
	Success bool         `json:"success"`
	User    userResponse `json:"user"`
}
