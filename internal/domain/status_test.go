// internal/domain/status_test.go
package domain

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPendingConfirmation, StatusPacking, true},
		{StatusPendingConfirmation, StatusCancelled, true},
		{StatusPacking, StatusCancelled, true},
		{StatusPacking, StatusAwaitingPickup, true},
		{StatusPacking, StatusAwaitingPayment, true},
		{StatusAwaitingPayment, StatusPickedUp, true},
		{StatusPickedUp, StatusInTransit, true},
		{StatusInTransit, StatusDelivered, true},
		{StatusInTransit, StatusCompleted, true},
		{StatusCancelled, StatusPacking, false},
		{StatusAwaitingPickup, StatusCancelled, false},
		{StatusInTransit, StatusCancelled, false},
		{StatusCompleted, StatusInTransit, false},
		{StatusPacking, StatusPendingConfirmation, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusCancelled, StatusCompleted, StatusDelivered} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if StatusPacking.Terminal() {
		t.Errorf("packing should not be terminal")
	}
}

func TestInitialStatus(t *testing.T) {
	if got := InitialStatus(true, PaymentCash); got != StatusPendingConfirmation {
		t.Errorf("merchant order starts at %s", got)
	}
	if got := InitialStatus(false, PaymentCash); got != StatusAwaitingPayment {
		t.Errorf("cash order without merchant starts at %s", got)
	}
	if got := InitialStatus(false, PaymentBalance); got != StatusAwaitingPickup {
		t.Errorf("prepaid order without merchant starts at %s", got)
	}
}

func TestPlanTransition(t *testing.T) {
	merchant := Actor{ID: "m-1", Role: RoleMerchant}
	courier := Actor{ID: "c-1", Role: RoleCourier}

	tests := []struct {
		name    string
		order   Order
		action  Action
		actor   Actor
		want    Status
		wantErr error
	}{
		{
			name:   "merchant accepts",
			order:  Order{ID: "o", Status: StatusPendingConfirmation, MerchantID: "m-1"},
			action: ActionAccept, actor: merchant, want: StatusPacking,
		},
		{
			name:   "merchant declines while packing",
			order:  Order{ID: "o", Status: StatusPacking, MerchantID: "m-1"},
			action: ActionDecline, actor: merchant, want: StatusCancelled,
		},
		{
			name:   "cash order packed waits for payment",
			order:  Order{ID: "o", Status: StatusPacking, MerchantID: "m-1", PaymentMethod: PaymentCash},
			action: ActionCompletePacking, actor: merchant, want: StatusAwaitingPayment,
		},
		{
			name:   "prepaid order packed waits for pickup",
			order:  Order{ID: "o", Status: StatusPacking, MerchantID: "m-1", PaymentMethod: PaymentTransfer},
			action: ActionCompletePacking, actor: merchant, want: StatusAwaitingPickup,
		},
		{
			name:   "accept on cancelled order",
			order:  Order{ID: "o", Status: StatusCancelled, MerchantID: "m-1"},
			action: ActionAccept, actor: merchant, wantErr: ErrStaleStatus,
		},
		{
			name:   "second accept after packing started",
			order:  Order{ID: "o", Status: StatusPacking, MerchantID: "m-1"},
			action: ActionAccept, actor: merchant, wantErr: ErrStaleStatus,
		},
		{
			name:   "depart before pickup",
			order:  Order{ID: "o", Status: StatusAwaitingPickup},
			action: ActionDepart, actor: courier, wantErr: ErrStaleStatus,
		},
		{
			name:   "unknown action",
			order:  Order{ID: "o", Status: StatusPendingConfirmation, MerchantID: "m-1"},
			action: Action("reopen"), actor: courier, wantErr: ErrIllegalTransition,
		},
		{
			name:   "other merchant",
			order:  Order{ID: "o", Status: StatusPendingConfirmation, MerchantID: "m-2"},
			action: ActionAccept, actor: merchant, wantErr: ErrForbidden,
		},
		{
			name:   "courier cannot accept",
			order:  Order{ID: "o", Status: StatusPendingConfirmation, MerchantID: "m-1"},
			action: ActionAccept, actor: courier, wantErr: ErrForbidden,
		},
		{
			name:   "courier picks up",
			order:  Order{ID: "o", Status: StatusAwaitingPickup},
			action: ActionPickUp, actor: courier, want: StatusPickedUp,
		},
		{
			name:   "different courier after pickup",
			order:  Order{ID: "o", Status: StatusPickedUp, CourierID: "c-9"},
			action: ActionDepart, actor: courier, wantErr: ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upd, err := PlanTransition(&tt.order, tt.action, tt.actor)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("PlanTransition() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("PlanTransition() unexpected error: %v", err)
			}
			if upd.To != tt.want || upd.Expected != tt.order.Status {
				t.Errorf("PlanTransition() = %+v, want %s from %s", upd, tt.want, tt.order.Status)
			}
			if tt.action == ActionPickUp && upd.CourierID != tt.actor.ID {
				t.Errorf("pick up should record courier, got %q", upd.CourierID)
			}
		})
	}
}

func TestActorMayUpdate(t *testing.T) {
	o := &Order{ID: "o", Status: StatusPacking, MerchantID: "m-1", PaymentMethod: PaymentCash}
	merchant := Actor{ID: "m-1", Role: RoleMerchant}

	err := ActorMayUpdate(o, StatusUpdate{Expected: StatusPacking, To: StatusAwaitingPickup, Actor: merchant})
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("cash order must not skip payment, got %v", err)
	}
	if err := ActorMayUpdate(o, StatusUpdate{Expected: StatusPacking, To: StatusAwaitingPayment, Actor: merchant}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err = ActorMayUpdate(o, StatusUpdate{Expected: StatusCancelled, To: StatusPacking, Actor: merchant})
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("cancelled -> packing should be illegal, got %v", err)
	}
}

func TestValidationErrorIs(t *testing.T) {
	verr := NewValidationError()
	verr.Add("receiver.phone", "invalid")
	verr.Add("receiver.phone", "ignored")
	if !errors.Is(verr, ErrValidation) {
		t.Fatalf("validation error should match ErrValidation")
	}
	if verr.Error() != "invalid order input: receiver.phone: invalid" {
		t.Errorf("Error() = %q", verr.Error())
	}
}
