// internal/domain/status.go
package domain

import "fmt"

type Status string

const (
	StatusPendingConfirmation Status = "pending_confirmation"
	StatusPacking             Status = "packing"
	StatusAwaitingPickup      Status = "awaiting_pickup"
	StatusAwaitingPayment     Status = "awaiting_payment"
	StatusPickedUp            Status = "picked_up"
	StatusInTransit           Status = "in_transit"
	StatusDelivered           Status = "delivered"
	StatusCompleted           Status = "completed"
	StatusCancelled           Status = "cancelled"
)

// AllowedTransitions holds the structurally valid edges. Which actor may walk an edge is decided by Action.
var AllowedTransitions = map[Status][]Status{
	StatusPendingConfirmation: {StatusPacking, StatusCancelled},
	StatusPacking:             {StatusAwaitingPickup, StatusAwaitingPayment, StatusCancelled},
	StatusAwaitingPickup:      {StatusPickedUp},
	StatusAwaitingPayment:     {StatusPickedUp},
	StatusPickedUp:            {StatusInTransit},
	StatusInTransit:           {StatusDelivered, StatusCompleted},
}

var allowedTransitionSet = buildTransitionSet(AllowedTransitions)

func buildTransitionSet(transitions map[Status][]Status) map[Status]map[Status]struct{} {
	set := make(map[Status]map[Status]struct{}, len(transitions))
	for from, tos := range transitions {
		next := make(map[Status]struct{}, len(tos))
		for _, to := range tos {
			next[to] = struct{}{}
		}
		set[from] = next
	}
	return set
}

func CanTransition(from, to Status) bool {
	next, ok := allowedTransitionSet[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

func (s Status) Valid() bool {
	switch s {
	case StatusPendingConfirmation, StatusPacking, StatusAwaitingPickup, StatusAwaitingPayment,
		StatusPickedUp, StatusInTransit, StatusDelivered, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return len(AllowedTransitions[s]) == 0
}

// InitialStatus is where a freshly created order starts.
func InitialStatus(merchantFulfilled bool, method PaymentMethod) Status {
	if merchantFulfilled {
		return StatusPendingConfirmation
	}
	return pickupStatus(method)
}

func pickupStatus(method PaymentMethod) Status {
	if method.Prepaid() {
		return StatusAwaitingPickup
	}
	return StatusAwaitingPayment
}

type Action string

const (
	ActionAccept          Action = "accept"
	ActionDecline         Action = "decline"
	ActionCompletePacking Action = "complete_packing"
	ActionPickUp          Action = "pick_up"
	ActionDepart          Action = "depart"
	ActionDeliver         Action = "deliver"
	ActionComplete        Action = "complete"
)

func (a Action) Role() ActorRole {
	switch a {
	case ActionAccept, ActionDecline, ActionCompletePacking:
		return RoleMerchant
	default:
		return RoleCourier
	}
}

// actionSources lists the statuses each action may start from.
var actionSources = map[Action][]Status{
	ActionAccept:          {StatusPendingConfirmation},
	ActionDecline:         {StatusPendingConfirmation, StatusPacking},
	ActionCompletePacking: {StatusPacking},
	ActionPickUp:          {StatusAwaitingPickup, StatusAwaitingPayment},
	ActionDepart:          {StatusPickedUp},
	ActionDeliver:         {StatusInTransit},
	ActionComplete:        {StatusInTransit},
}

// NextStatus resolves the destination of action for an order currently at o.Status.
// An order that has already moved past the action's source statuses yields ErrStaleStatus;
// an unknown action yields ErrIllegalTransition. It does not check who is acting; see Authorize.
func NextStatus(o *Order, action Action) (Status, error) {
	sources, ok := actionSources[action]
	if !ok {
		return "", fmt.Errorf("unknown action %q: %w", action, ErrIllegalTransition)
	}
	if !containsStatus(sources, o.Status) {
		return "", fmt.Errorf("%s needs %v, order %s is %s: %w", action, sources, o.ID, o.Status, ErrStaleStatus)
	}

	var to Status
	switch action {
	case ActionAccept:
		to = StatusPacking
	case ActionDecline:
		to = StatusCancelled
	case ActionCompletePacking:
		to = pickupStatus(o.PaymentMethod)
	case ActionPickUp:
		to = StatusPickedUp
	case ActionDepart:
		to = StatusInTransit
	case ActionDeliver:
		to = StatusDelivered
	case ActionComplete:
		to = StatusCompleted
	}
	if !CanTransition(o.Status, to) {
		return "", fmt.Errorf("%s from %s: %w", action, o.Status, ErrIllegalTransition)
	}
	return to, nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Authorize checks that actor is allowed to perform action on o.
func Authorize(o *Order, action Action, actor Actor) error {
	if actor.ID == "" || actor.Role != action.Role() {
		return fmt.Errorf("%s requires role %s: %w", action, action.Role(), ErrForbidden)
	}
	switch actor.Role {
	case RoleMerchant:
		if o.MerchantID == "" || o.MerchantID != actor.ID {
			return fmt.Errorf("merchant %s is not assigned to %s: %w", actor.ID, o.ID, ErrForbidden)
		}
	case RoleCourier:
		if o.CourierID != "" && o.CourierID != actor.ID {
			return fmt.Errorf("courier %s is not assigned to %s: %w", actor.ID, o.ID, ErrForbidden)
		}
	}
	return nil
}

// PlanTransition validates actor and edge and returns the compare-and-set request to send.
func PlanTransition(o *Order, action Action, actor Actor) (StatusUpdate, error) {
	if err := Authorize(o, action, actor); err != nil {
		return StatusUpdate{}, err
	}
	to, err := NextStatus(o, action)
	if err != nil {
		return StatusUpdate{}, err
	}
	upd := StatusUpdate{OrderID: o.ID, Expected: o.Status, To: to, Actor: actor}
	if action == ActionPickUp {
		upd.CourierID = actor.ID
	}
	return upd, nil
}

// ActorMayUpdate is the server-side guard for a raw compare-and-set request.
func ActorMayUpdate(o *Order, upd StatusUpdate) error {
	if !CanTransition(upd.Expected, upd.To) {
		return fmt.Errorf("%s -> %s: %w", upd.Expected, upd.To, ErrIllegalTransition)
	}
	if upd.Expected == StatusPacking && upd.To != StatusCancelled && upd.To != pickupStatus(o.PaymentMethod) {
		return fmt.Errorf("%s payment leads to %s, not %s: %w", o.PaymentMethod, pickupStatus(o.PaymentMethod), upd.To, ErrIllegalTransition)
	}
	return Authorize(o, actionFor(upd.Expected, upd.To), upd.Actor)
}

func actionFor(from, to Status) Action {
	switch {
	case from == StatusPendingConfirmation && to == StatusPacking:
		return ActionAccept
	case to == StatusCancelled:
		return ActionDecline
	case from == StatusPacking:
		return ActionCompletePacking
	case to == StatusPickedUp:
		return ActionPickUp
	case to == StatusInTransit:
		return ActionDepart
	case to == StatusDelivered:
		return ActionDeliver
	default:
		return ActionComplete
	}
}
