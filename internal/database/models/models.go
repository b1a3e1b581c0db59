package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList is a JSON-encoded list of strings stored in a TEXT column.
type StringList []string

func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Mode is a named mode with its ordered allowed values.
type Mode struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// ModeList is a JSON-encoded list of modes stored in a TEXT column.
type ModeList []Mode

func (m *ModeList) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type for ModeList: %T", value)
	}
}

func (m ModeList) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Device represents a registered IoT device
type Device struct {
	DeviceID     string     `json:"device_id" db:"device_id"`
	UserID       string     `json:"user_id" db:"user_id"`
	Template     string     `json:"device_template" db:"device_template"`
	Name         string     `json:"name" db:"name"`
	Capabilities StringList `json:"capabilities" db:"capabilities"`
	Modes        ModeList   `json:"modes" db:"modes"`
	TopicEvents  string     `json:"topic_events" db:"topic_events"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// User represents a linked Amazon account
type User struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserToken represents the single live OAuth credential for a user.
// Refreshes rotate access_token and refresh_token in place.
type UserToken struct {
	UserID       string    `json:"user_id" db:"user_id"`
	Code         string    `json:"code" db:"code"`
	AccessToken  string    `json:"access_token" db:"access_token"`
	RefreshToken string    `json:"refresh_token" db:"refresh_token"`
	TokenType    string    `json:"token_type" db:"token_type"`
	ExpiresIn    int       `json:"expires_in" db:"expires_in"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
