package planner

import (
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/replica"
)

type Action string

const (
	ActionCopy   Action = "copy"
	ActionDelete Action = "delete"
	ActionNone   Action = "none"
)

type Item struct {
	Key    string
	Action Action
	From   replica.Tag // copy source
	To     replica.Tag // copy destination
	Target replica.Tag // replica a delete applies to
	Reason string
}

// Mutates reports whether the item changes a replica.
func (i Item) Mutates() bool {
	return i.Action == ActionCopy || i.Action == ActionDelete
}

type Summary struct {
	Copy   int `json:"copy"`
	Delete int `json:"delete"`
	None   int `json:"none"`
}
