package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/Skotchmaster/tasktracker/internal/models"
	"github.com/Skotchmaster/tasktracker/internal/service"
)

const DueDateLayout = "02-01-2006 15:04"

// Check runs v.Validate and tags failures as validation errors.
func Check(v validation.Validatable) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", service.ErrValidation, err)
	}
	return nil
}

// DueDate reads and writes the DD-MM-YYYY HH:MM wire format.
type DueDate struct {
	time.Time
}

func (d *DueDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("due_date must be a string in DD-MM-YYYY HH:MM format")
	}
	t, err := time.Parse(DueDateLayout, s)
	if err != nil {
		return fmt.Errorf("due_date must be in DD-MM-YYYY HH:MM format")
	}
	d.Time = t
	return nil
}

func (d DueDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(DueDateLayout))
}

// Flag accepts JSON booleans as well as 0 and 1.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	switch string(bytes.TrimSpace(b)) {
	case "null":
	case "true", "1":
		*f = true
	case "false", "0":
		*f = false
	default:
		return fmt.Errorf("done must be a boolean or 0/1")
	}
	return nil
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type LoginResponse struct {
	Message     string `json:"message"`
	UserID      uint   `json:"user_id"`
	AccessToken string `json:"access_token"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r CreateUserRequest) Input() service.RegisterInput {
	return service.RegisterInput{
		Username: r.Username,
		Email:    r.Email,
		Password: r.Password,
		Role:     models.Role(r.Role),
	}
}

type UpdateUserRequest struct {
	Username *string      `json:"username"`
	Email    *string      `json:"email"`
	Role     *models.Role `json:"role"`
	Password *string      `json:"password"`
}

func (r UpdateUserRequest) Input() service.UpdateUserInput {
	return service.UpdateUserInput{
		Username: r.Username,
		Email:    r.Email,
		Role:     r.Role,
		Password: r.Password,
	}
}

type UserResponse struct {
	ID       uint        `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
}

func NewUserResponse(u models.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

func NewUserResponses(users []models.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i, u := range users {
		out[i] = NewUserResponse(u)
	}
	return out
}

type CreateTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Done        Flag     `json:"done"`
	DueDate     *DueDate `json:"due_date"`
}

func (r CreateTaskRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, service.MaxTitleLen)),
	)
}

func (r CreateTaskRequest) Input() service.CreateTaskInput {
	in := service.CreateTaskInput{
		Title:       r.Title,
		Description: r.Description,
		Done:        bool(r.Done),
	}
	if r.DueDate != nil {
		due := r.DueDate.Time
		in.DueDate = &due
	}
	return in
}

type UpdateTaskRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Done        *Flag    `json:"done"`
	DueDate     *DueDate `json:"due_date"`
}

func (r UpdateTaskRequest) Input() service.UpdateTaskInput {
	in := service.UpdateTaskInput{
		Title:       r.Title,
		Description: r.Description,
	}
	if r.Done != nil {
		done := bool(*r.Done)
		in.Done = &done
	}
	if r.DueDate != nil {
		due := r.DueDate.Time
		in.DueDate = &due
	}
	return in
}

type TaskResponse struct {
	ID          uint     `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Done        bool     `json:"done"`
	DueDate     *DueDate `json:"due_date"`
	UserID      uint     `json:"user_id"`
}

func NewTaskResponse(t models.Task) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Done:        t.Done,
		UserID:      t.UserID,
	}
	if t.DueDate != nil {
		resp.DueDate = &DueDate{Time: *t.DueDate}
	}
	return resp
}

func NewTaskResponses(tasks []models.Task) []TaskResponse {
	out := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = NewTaskResponse(t)
	}
	return out
}

type MessageResponse struct {
	Message string `json:"message"`
}
