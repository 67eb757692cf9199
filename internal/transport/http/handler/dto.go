package handler

import (
	"encoding/json"
	"strings"
	"time"

	"user-api/internal/domain"
)

// UserResp is the public shape of a user; the password hash never leaves.
type UserResp struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	IsActive  bool        `json:"isActive"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func toUserResp(u *domain.User) UserResp {
	return UserResp{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// trimmedString drops surrounding whitespace while decoding, so length
// rules apply to the value that gets stored.
type trimmedString string

func (t *trimmedString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = trimmedString(strings.TrimSpace(s))
	return nil
}

type signupReq struct {
	Name     trimmedString `json:"name" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"required,email,max=191"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type signupResp struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,max=72"`
}

type loginUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginResp struct {
	Message string    `json:"message"`
	User    loginUser `json:"user"`
	Token   string    `json:"token"`
}

type createUserReq struct {
	Name     trimmedString `json:"name" binding:"required,max=64"`
	Email    string        `json:"email" binding:"required,email,max=191"`
	Password string        `json:"password" binding:"required,min=6,max=72"`
	Role     string        `json:"role" binding:"omitempty,oneof=user admin"`
	IsActive *bool         `json:"isActive"`
}

// updateUserReq uses pointers so an absent field differs from a zero one.
type updateUserReq struct {
	Name     *trimmedString `json:"name" binding:"omitempty,min=1,max=64"`
	Email    *string        `json:"email" binding:"omitempty,email"`
	Password *string        `json:"password" binding:"omitempty,min=6,max=72"`
	Role     *string        `json:"role" binding:"omitempty,oneof=user admin"`
	IsActive *bool          `json:"isActive"`
}

type listQuery struct {
	Limit  int `form:"limit,default=10" binding:"min=0,max=100"`
	Offset int `form:"offset,default=0" binding:"min=0"`
}

type listResp struct {
	Data  []UserResp `json:"data"`
	Total int64      `json:"total"`
}

type proverbResp struct {
	Content string `json:"content"`
}
