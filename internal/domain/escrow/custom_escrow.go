package escrow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/domain/shared/valueobject"
)

// CustomStatus represents the aggregate status of a custom order escrow
type CustomStatus string

const (
	CustomCreated        CustomStatus = "CREATED"
	CustomAdvancePending CustomStatus = "ADVANCE_PENDING"
	CustomAdvancePaid    CustomStatus = "ADVANCE_PAID"
	CustomBalancePending CustomStatus = "BALANCE_PENDING"
	CustomBalancePaid    CustomStatus = "BALANCE_PAID"
	CustomReleased       CustomStatus = "RELEASED"
	CustomRefunded       CustomStatus = "REFUNDED"
)

// IsTerminal reports whether the escrow is finished
func (s CustomStatus) IsTerminal() bool {
	return s == CustomReleased || s == CustomRefunded
}

// AcceptsAdvance reports whether advance payments are being collected
func (s CustomStatus) AcceptsAdvance() bool {
	return s == CustomCreated || s == CustomAdvancePending
}

// AcceptsBalance reports whether balance payments are being collected
func (s CustomStatus) AcceptsBalance() bool {
	return s == CustomAdvancePaid || s == CustomBalancePending
}

// Phase identifies one of the two collection phases
type Phase string

const (
	PhaseAdvance Phase = "ADVANCE"
	PhaseBalance Phase = "BALANCE"
)

// Custom escrow errors
var (
	ErrNotParticipant  = shared.NewAuthorizationError("NOT_ESCROW_PARTICIPANT", "Seller is not a participant of this escrow")
	ErrAlreadyPaid     = shared.NewStateConflictError("PHASE_ALREADY_PAID", "This phase share has already been paid")
	ErrPhaseClosed     = shared.NewStateConflictError("PHASE_NOT_OPEN", "This payment phase is not open")
	ErrNotFullyPaid    = shared.NewStateConflictError("BALANCE_NOT_PAID", "Escrow can only be released once the balance is paid")
	ErrInvalidPercent  = shared.NewValidationError("INVALID_ADVANCE_PERCENTAGE", "Advance percentage must be between 0 and 100")
	ErrDuplicateSeller = shared.NewValidationError("DUPLICATE_PARTICIPANT", "A seller may only appear once")
)

// ParticipantPayment is one seller's share of a custom order, split into an
// advance part and a balance part that are paid independently.
type ParticipantPayment struct {
	ID                   uuid.UUID
	EscrowID             uuid.UUID
	SellerID             uuid.UUID
	ShareAmount          decimal.Decimal
	AdvanceShare         decimal.Decimal
	BalanceShare         decimal.Decimal
	AdvancePaid          bool
	BalancePaid          bool
	AdvanceTransactionID string
	BalanceTransactionID string
	AdvanceRefundID      string
	BalanceRefundID      string
}

// Share returns the amount due for a phase
func (p *ParticipantPayment) Share(phase Phase) decimal.Decimal {
	if phase == PhaseAdvance {
		return p.AdvanceShare
	}
	return p.BalanceShare
}

// IsPaid reports whether the phase share is settled
func (p *ParticipantPayment) IsPaid(phase Phase) bool {
	if phase == PhaseAdvance {
		return p.AdvancePaid
	}
	return p.BalancePaid
}

// Weight is a seller's claim on a custom order's cost, typically the seller's
// group contribution amount
type Weight struct {
	SellerID uuid.UUID
	Amount   decimal.Decimal
}

// CustomOrderEscrow splits one custom order's cost across its payers in two
// phases. The aggregate status only advances once every payer's share of the
// current phase is paid.
type CustomOrderEscrow struct {
	shared.BaseAggregateRoot
	CustomRequestID   uuid.UUID
	ManufacturerID    uuid.UUID
	GroupID           *uuid.UUID
	TotalAmount       decimal.Decimal
	AdvancePercentage decimal.Decimal
	AdvanceAmount     decimal.Decimal
	BalanceAmount     decimal.Decimal
	Participants      []ParticipantPayment
	Status            CustomStatus
	ReleasedAt        *time.Time
	RefundedAt        *time.Time
}

// CustomTerms describes a new custom order escrow
type CustomTerms struct {
	CustomRequestID   uuid.UUID
	ManufacturerID    uuid.UUID
	GroupID           *uuid.UUID
	TotalAmount       decimal.Decimal
	AdvancePercentage decimal.Decimal
	Weights           []Weight
}

// NewCustomOrderEscrow splits the total into advance and balance and into
// per-participant shares proportional to the weights. Every split sums
// exactly to its whole.
func NewCustomOrderEscrow(t CustomTerms) (*CustomOrderEscrow, error) {
	if t.CustomRequestID == uuid.Nil || t.ManufacturerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_REQUEST", "Custom request and manufacturer are required")
	}
	if !valueobject.IsPositive(t.TotalAmount) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Total amount must be positive")
	}
	if t.AdvancePercentage.IsNegative() || t.AdvancePercentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, ErrInvalidPercent
	}
	if len(t.Weights) == 0 {
		return nil, shared.NewValidationError("NO_PARTICIPANTS", "At least one payer is required")
	}

	seen := make(map[uuid.UUID]struct{}, len(t.Weights))
	weights := make([]decimal.Decimal, len(t.Weights))
	for i, w := range t.Weights {
		if _, dup := seen[w.SellerID]; dup {
			return nil, ErrDuplicateSeller
		}
		seen[w.SellerID] = struct{}{}
		weights[i] = w.Amount
	}

	total := valueobject.RoundMoney(t.TotalAmount)
	advance := valueobject.Percentage(total, t.AdvancePercentage)
	shares, err := valueobject.SplitProportional(total, weights)
	if err != nil {
		return nil, shared.NewValidationError("INVALID_WEIGHTS", err.Error())
	}
	advanceShares, err := valueobject.SplitAlong(advance, shares)
	if err != nil {
		return nil, shared.NewValidationError("INVALID_WEIGHTS", err.Error())
	}

	e := &CustomOrderEscrow{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomRequestID:   t.CustomRequestID,
		ManufacturerID:    t.ManufacturerID,
		GroupID:           t.GroupID,
		TotalAmount:       total,
		AdvancePercentage: t.AdvancePercentage,
		AdvanceAmount:     advance,
		BalanceAmount:     total.Sub(advance),
		Status:            CustomCreated,
	}
	e.Participants = make([]ParticipantPayment, len(t.Weights))
	for i, w := range t.Weights {
		balanceShare := shares[i].Sub(advanceShares[i])
		e.Participants[i] = ParticipantPayment{
			ID:           uuid.New(),
			EscrowID:     e.ID,
			SellerID:     w.SellerID,
			ShareAmount:  shares[i],
			AdvanceShare: advanceShares[i],
			BalanceShare: balanceShare,
			AdvancePaid:  advanceShares[i].IsZero(),
			BalancePaid:  balanceShare.IsZero(),
		}
	}
	e.Status = e.deriveStatus()
	e.AddDomainEvent(NewCustomEscrowEvent(EventTypeCustomCreated, e, nil))
	return e, nil
}

// Participant finds the payer row for sellerID
func (e *CustomOrderEscrow) Participant(sellerID uuid.UUID) (*ParticipantPayment, error) {
	for i := range e.Participants {
		if e.Participants[i].SellerID == sellerID {
			return &e.Participants[i], nil
		}
	}
	return nil, ErrNotParticipant
}

// AllPaid reports whether every payer has paid the phase
func (e *CustomOrderEscrow) AllPaid(phase Phase) bool {
	for i := range e.Participants {
		if !e.Participants[i].IsPaid(phase) {
			return false
		}
	}
	return true
}

func (e *CustomOrderEscrow) anyCaptured(phase Phase) bool {
	for _, p := range e.Participants {
		if phase == PhaseAdvance && p.AdvanceTransactionID != "" {
			return true
		}
		if phase == PhaseBalance && p.BalanceTransactionID != "" {
			return true
		}
	}
	return false
}

// deriveStatus computes the collection status from the participant flags.
// With no balance left to collect the last advance payment moves the escrow
// straight to BALANCE_PAID.
func (e *CustomOrderEscrow) deriveStatus() CustomStatus {
	if e.Status.IsTerminal() {
		return e.Status
	}
	switch {
	case !e.AllPaid(PhaseAdvance):
		if e.anyCaptured(PhaseAdvance) {
			return CustomAdvancePending
		}
		return CustomCreated
	case e.AllPaid(PhaseBalance):
		return CustomBalancePaid
	case e.anyCaptured(PhaseBalance):
		return CustomBalancePending
	default:
		return CustomAdvancePaid
	}
}

// CheckPayment validates that sellerID may pay the phase now and returns the
// amount due.
func (e *CustomOrderEscrow) CheckPayment(sellerID uuid.UUID, phase Phase) (decimal.Decimal, error) {
	p, err := e.Participant(sellerID)
	if err != nil {
		return decimal.Zero, err
	}
	open := e.Status.AcceptsAdvance()
	if phase == PhaseBalance {
		open = e.Status.AcceptsBalance()
	}
	if !open {
		return decimal.Zero, shared.NewStateConflictError(ErrPhaseClosed.Code,
			fmt.Sprintf("Cannot pay %s while escrow is %s", phase, e.Status))
	}
	if p.IsPaid(phase) {
		return decimal.Zero, ErrAlreadyPaid
	}
	return p.Share(phase), nil
}

// RecordPayment marks the phase share of sellerID paid by transactionID and
// re-derives the aggregate status.
func (e *CustomOrderEscrow) RecordPayment(sellerID uuid.UUID, phase Phase, transactionID string) error {
	if _, err := e.CheckPayment(sellerID, phase); err != nil {
		return err
	}
	p, _ := e.Participant(sellerID)
	if phase == PhaseAdvance {
		p.AdvancePaid = true
		p.AdvanceTransactionID = transactionID
	} else {
		p.BalancePaid = true
		p.BalanceTransactionID = transactionID
	}
	previous := e.Status
	e.Status = e.deriveStatus()
	e.Touch()
	if e.Status != previous {
		e.AddDomainEvent(NewCustomEscrowEvent(EventTypeCustomStatusChanged, e, &sellerID))
	}
	return nil
}

// Release pays the manufacturer. It reports false when already released.
func (e *CustomOrderEscrow) Release() (bool, error) {
	switch e.Status {
	case CustomReleased:
		return false, nil
	case CustomBalancePaid:
	default:
		return false, shared.NewStateConflictError(ErrNotFullyPaid.Code,
			fmt.Sprintf("Cannot release an escrow in %s status", e.Status))
	}
	now := time.Now()
	e.Status = CustomReleased
	e.ReleasedAt = &now
	e.UpdatedAt = now
	e.AddDomainEvent(NewCustomEscrowEvent(EventTypeCustomReleased, e, nil))
	return true, nil
}

// Reversal is one captured payment that a refund must return
type Reversal struct {
	SellerID      uuid.UUID
	Phase         Phase
	TransactionID string
	Amount        decimal.Decimal
}

// Refund closes the escrow and lists the captured payments to reverse. It
// reports false when already refunded.
func (e *CustomOrderEscrow) Refund() ([]Reversal, bool, error) {
	switch e.Status {
	case CustomRefunded:
		return nil, false, nil
	case CustomReleased:
		return nil, false, ErrAlreadyReleased
	}
	var reversals []Reversal
	for _, p := range e.Participants {
		if p.AdvanceTransactionID != "" {
			reversals = append(reversals, Reversal{p.SellerID, PhaseAdvance, p.AdvanceTransactionID, p.AdvanceShare})
		}
		if p.BalanceTransactionID != "" {
			reversals = append(reversals, Reversal{p.SellerID, PhaseBalance, p.BalanceTransactionID, p.BalanceShare})
		}
	}
	now := time.Now()
	e.Status = CustomRefunded
	e.RefundedAt = &now
	e.UpdatedAt = now
	e.AddDomainEvent(NewCustomEscrowEvent(EventTypeCustomRefunded, e, nil))
	return reversals, true, nil
}

// RecordReversal stores the gateway confirmation for a reversed payment
func (e *CustomOrderEscrow) RecordReversal(r Reversal, confirmationID string) {
	p, err := e.Participant(r.SellerID)
	if err != nil {
		return
	}
	if r.Phase == PhaseAdvance {
		p.AdvanceRefundID = confirmationID
	} else {
		p.BalanceRefundID = confirmationID
	}
}

// IsPayer reports whether actorID is one of the payers
func (e *CustomOrderEscrow) IsPayer(actorID uuid.UUID) bool {
	_, err := e.Participant(actorID)
	return err == nil
}
