package models

// Action is a queueable write operation.
type Action string

// Queueable actions
const (
	ActionPost   Action = "post"
	ActionPatch  Action = "patch"
	ActionDelete Action = "delete"
)

// Actions lists the queueable actions in flush order.
var Actions = []Action{ActionPost, ActionPatch, ActionDelete}

// Valid reports whether a is one of the queueable actions.
func (a Action) Valid() bool {
	switch a {
	case ActionPost, ActionPatch, ActionDelete:
		return true
	}
	return false
}

// QueuedAction is one pending local write of a model.
type QueuedAction struct {
	Data   Entity `json:"data"`
	Type   string `json:"type"`
	URL    string `json:"url,omitempty"`
	Action Action `json:"action"`
	// Seq is assigned by the store on enqueue. Zero means "not queued yet".
	Seq uint64 `json:"seq,omitempty"`
}

// ID returns the id of the entity the action targets.
func (q QueuedAction) ID() string {
	return q.Data.ID()
}

// Clone returns a copy with independent data.
func (q QueuedAction) Clone() QueuedAction {
	q.Data = q.Data.Clone()
	return q
}
