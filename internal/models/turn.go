package models

import "time"

// Turn is one exchange in the conversation.
type Turn struct {
	ID     string    `json:"id"`
	Input  string    `json:"input"`
	Output string    `json:"output"`
	At     time.Time `json:"at"`
}
