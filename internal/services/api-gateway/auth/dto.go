package auth

import (
	"time"

	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.RuneLength(1, MaxUsernameLength)),
		validation.Field(&r.Email, validation.Required, validation.RuneLength(3, MaxEmailLength), is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type loginResponse struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

type logoutResponse struct {
	Success bool `json:"success"`
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

func (r updateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.NilOrNotEmpty, validation.RuneLength(1, MaxUsernameLength)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, validation.RuneLength(3, MaxEmailLength), is.Email),
	)
}

func (r updateUserRequest) patch() user.Patch {
	return user.Patch{Username: r.Username, Email: r.Email}
}

type userView struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func toUserView(u *user.User) userView {
	return userView{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

type listUsersResponse struct {
	Users []userView `json:"users"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	TraceID string `json:"trace_id,omitempty"`
}
