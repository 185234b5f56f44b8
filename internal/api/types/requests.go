package types

type SignInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type SignUpRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ProgressRequest struct {
	ProgressPercentage int  `json:"progress_percentage"`
	Completed          bool `json:"completed"`
}

type PasswordChangeRequest struct {
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type AccountDeleteRequest struct {
	Confirmation string `json:"confirmation"`
}
