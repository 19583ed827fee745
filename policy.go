package main

// Action enumerates what a user may try to do with expenses.
type Action int

const (
	ActionView Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
	ActionListOwn
)

// Can decides whether actor may perform action on target. It is a pure
// function consulted by every expense handler before the store is touched.
// Creating and listing are open to any authenticated user and are always
// scoped to their own records; everything else requires ownership of the
// target. A nil target only makes sense for Create and ListOwn.
func Can(actor User, action Action, target *Expense) bool {
	switch action {
	case ActionCreate, ActionListOwn:
		return true
	case ActionView, ActionUpdate, ActionDelete:
		return target != nil && target.UserID == actor.ID
	}
	return false
}
