package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vouchpay/vouchpay/internal/catalog"
	"github.com/vouchpay/vouchpay/internal/dispute"
	"github.com/vouchpay/vouchpay/internal/escrow"
	"github.com/vouchpay/vouchpay/internal/fault"
	"github.com/vouchpay/vouchpay/internal/ledger"
	"github.com/vouchpay/vouchpay/internal/notification"
	"github.com/vouchpay/vouchpay/internal/syncutil"
	"github.com/vouchpay/vouchpay/internal/wallet"
)

// SystemActor is recorded as the resolver on deadline auto-verifications.
const SystemActor = "system"

// Service coordinates the order lifecycle. Every mutation runs under a
// per-order lock; money always moves through the wallet service first, so
// the ledger stays the source of truth even when a later stamp fails.
type Service struct {
	repo     Repository
	wallets  *wallet.Service
	escrow   *escrow.Manager
	catalog  catalog.Catalog
	disputes dispute.Repository
	notifier notification.Notifier
	logger   *slog.Logger

	feeBPS int
	window time.Duration

	locks *syncutil.KeyedMutex
	now   func() time.Time
}

// Config carries the collaborators and tunables for a Service.
type Config struct {
	Repository    Repository
	Wallets       *wallet.Service
	Escrow        *escrow.Manager
	Catalog       catalog.Catalog
	Disputes      dispute.Repository
	Notifier      notification.Notifier
	Logger        *slog.Logger
	ServiceFeeBPS int
	// VerificationWindow is how long after delivery the buyer has to
	// verify or dispute before the escrow auto-releases.
	VerificationWindow time.Duration
}

func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     cfg.Repository,
		wallets:  cfg.Wallets,
		escrow:   cfg.Escrow,
		catalog:  cfg.Catalog,
		disputes: cfg.Disputes,
		notifier: cfg.Notifier,
		logger:   logger,
		feeBPS:   cfg.ServiceFeeBPS,
		window:   cfg.VerificationWindow,
		locks:    syncutil.NewKeyedMutex(),
		now:      time.Now,
	}
}

// Place charges the buyer for a product and opens the escrow. The buyer
// pays price plus the marketplace fee; the whole amount sits in escrow
// until the order resolves. The hold is idempotent per order id, so a
// retried placement never double-charges.
func (s *Service) Place(ctx context.Context, buyerID, productID string) (Order, error) {
	product, found, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return Order{}, fault.Store(err)
	}
	if !found {
		return Order{}, fmt.Errorf("%w: unknown product %s", fault.ErrValidationFailed, productID)
	}
	if product.SellerID == buyerID {
		return Order{}, fmt.Errorf("%w: cannot buy your own product", fault.ErrForbidden)
	}

	fee := product.Price * int64(s.feeBPS) / 10_000
	amount := product.Price + fee
	orderID := uuid.NewString()

	if _, err := s.wallets.Authorize(ctx, buyerID, amount, orderID, fmt.Sprintf("purchase %q", product.Title)); err != nil {
		return Order{}, err
	}

	if _, err := s.escrow.Create(ctx, orderID, amount); err != nil {
		// Hold placed but no escrow account: give the money back rather
		// than leave it stranded.
		if _, refundErr := s.wallets.Refund(ctx, orderID); refundErr != nil {
			s.logger.Error("escrow create failed and refund compensation failed",
				slog.String("order_id", orderID), slog.Any("error", refundErr))
		}
		return Order{}, err
	}

	o := Order{
		ID:           orderID,
		BuyerID:      buyerID,
		SellerID:     product.SellerID,
		ProductID:    productID,
		Amount:       amount,
		Status:       StatusPaid,
		EscrowStatus: escrow.StatusHeld,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, o); err != nil {
		if _, refundErr := s.wallets.Refund(ctx, orderID); refundErr != nil {
			s.logger.Error("order insert failed and refund compensation failed",
				slog.String("order_id", orderID), slog.Any("error", refundErr))
		}
		if _, escErr := s.escrow.Refund(ctx, orderID); escErr != nil {
			s.logger.Error("order insert failed and escrow refund stamp failed",
				slog.String("order_id", orderID), slog.Any("error", escErr))
		}
		return Order{}, err
	}

	s.notify(ctx, notification.KindEscrowHeld, buyerID, orderID,
		fmt.Sprintf("payment of %d held in escrow for %q", amount, product.Title))
	s.notify(ctx, notification.KindEscrowHeld, product.SellerID, orderID,
		fmt.Sprintf("new order for %q, payment secured in escrow", product.Title))
	return o, nil
}

// Ship marks the order shipped. Seller only.
func (s *Service) Ship(ctx context.Context, orderID, actorID string) (Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.SellerID != actorID {
		return Order{}, fmt.Errorf("%w: only the seller can ship", fault.ErrForbidden)
	}
	if err := s.checkTransition(o, StatusShipped); err != nil {
		return Order{}, err
	}

	at := s.now().UTC()
	o.Status = StatusShipped
	o.ShippedAt = &at
	if err := s.repo.Update(ctx, o); err != nil {
		return Order{}, err
	}

	s.notify(ctx, notification.KindOrderShipped, o.BuyerID, orderID, "your order has shipped")
	return o, nil
}

// Deliver marks the order delivered and starts the verification window. The
// deadline is stamped exactly once, from the delivery time, and never moves
// afterwards.
func (s *Service) Deliver(ctx context.Context, orderID, actorID string) (Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.SellerID != actorID {
		return Order{}, fmt.Errorf("%w: only the seller can confirm delivery", fault.ErrForbidden)
	}
	if err := s.checkTransition(o, StatusDelivered); err != nil {
		return Order{}, err
	}

	at := s.now().UTC()
	deadline := at.Add(s.window)
	o.Status = StatusDelivered
	o.DeliveredAt = &at
	o.VerificationDeadline = &deadline
	if err := s.repo.Update(ctx, o); err != nil {
		return Order{}, err
	}

	s.notify(ctx, notification.KindOrderDelivered, o.BuyerID, orderID,
		fmt.Sprintf("order delivered; verify or dispute before %s", deadline.Format(time.RFC3339)))
	return o, nil
}

// Verify confirms receipt and releases the escrow to the seller. Buyer
// only, and only with evidence attached.
func (s *Service) Verify(ctx context.Context, orderID, actorID string, ev Evidence) (Order, error) {
	if err := ev.Validate(); err != nil {
		return Order{}, err
	}

	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.BuyerID != actorID {
		return Order{}, fmt.Errorf("%w: only the buyer can verify", fault.ErrForbidden)
	}
	if err := s.requireDelivered(o); err != nil {
		return Order{}, err
	}
	return s.release(ctx, o)
}

// AutoVerify releases an order whose verification window has elapsed. It is
// the sweeper's entry point: no actor, no evidence gate, but the deadline
// must genuinely have passed.
func (s *Service) AutoVerify(ctx context.Context, orderID string) (Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := s.requireDelivered(o); err != nil {
		return Order{}, err
	}
	if !o.DeadlineElapsed(s.now()) {
		return Order{}, fmt.Errorf("%w: verification window still open", fault.ErrInvalidTransition)
	}
	return s.release(ctx, o)
}

// OpenDispute freezes the escrow resolution and records the buyer's
// complaint. The order leaves the auto-release path until an arbiter rules.
func (s *Service) OpenDispute(ctx context.Context, orderID, actorID, reason string, ev Evidence) (Order, dispute.Dispute, error) {
	if err := ev.Validate(); err != nil {
		return Order{}, dispute.Dispute{}, err
	}

	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, dispute.Dispute{}, err
	}
	if o.BuyerID != actorID {
		return Order{}, dispute.Dispute{}, fmt.Errorf("%w: only the buyer can open a dispute", fault.ErrForbidden)
	}
	if err := s.checkTransition(o, StatusDisputed); err != nil {
		return Order{}, dispute.Dispute{}, err
	}

	if _, err := s.escrow.Dispute(ctx, orderID); err != nil {
		// A previous attempt may have parked the escrow before the order
		// stamp was written; that state is resumable.
		acct, found, statusErr := s.escrow.Status(ctx, orderID)
		if statusErr != nil {
			return Order{}, dispute.Dispute{}, statusErr
		}
		if !found || acct.Status != escrow.StatusDisputed {
			return Order{}, dispute.Dispute{}, err
		}
	}

	d, found, err := s.disputes.GetByOrder(ctx, orderID)
	if err != nil {
		return Order{}, dispute.Dispute{}, fault.Store(err)
	}
	if !found {
		d = dispute.Dispute{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			OpenedBy:  actorID,
			Reason:    reason,
			Evidence:  ev.Refs(),
			Status:    dispute.StatusOpen,
			CreatedAt: s.now().UTC(),
		}
		if err := s.disputes.Create(ctx, d); err != nil {
			return Order{}, dispute.Dispute{}, fault.Store(err)
		}
	}

	o.Status = StatusDisputed
	o.EscrowStatus = escrow.StatusDisputed
	o.DisputeID = d.ID
	if err := s.repo.Update(ctx, o); err != nil {
		return Order{}, dispute.Dispute{}, err
	}

	s.notify(ctx, notification.KindDisputeOpened, o.SellerID, orderID,
		fmt.Sprintf("buyer disputed the order: %s", reason))
	return o, d, nil
}

// ResolveDispute applies an arbiter ruling: a buyer decision refunds the
// escrow, a seller decision releases it. One shot per dispute.
func (s *Service) ResolveDispute(ctx context.Context, disputeID string, decision dispute.Decision, arbiterID string) (Order, error) {
	d, found, err := s.disputes.Get(ctx, disputeID)
	if err != nil {
		return Order{}, fault.Store(err)
	}
	if !found {
		return Order{}, fault.ErrDisputeNotFound
	}

	unlock := s.locks.Lock(d.OrderID)
	defer unlock()

	if d, found, err = s.disputes.Get(ctx, disputeID); err != nil {
		return Order{}, fault.Store(err)
	} else if !found || d.Resolved() {
		return Order{}, fault.ErrAlreadyResolved
	}

	o, err := s.load(ctx, d.OrderID)
	if err != nil {
		return Order{}, err
	}
	if o.Status != StatusDisputed {
		return Order{}, fmt.Errorf("%w: order is not under dispute", fault.ErrInvalidTransition)
	}

	var status dispute.Status
	switch decision {
	case dispute.DecisionBuyer:
		status = dispute.StatusResolvedBuyer
		o, err = s.refund(ctx, o)
	case dispute.DecisionSeller:
		status = dispute.StatusResolvedSeller
		o, err = s.release(ctx, o)
	default:
		return Order{}, fmt.Errorf("%w: decision must be %q or %q", fault.ErrValidationFailed, dispute.DecisionBuyer, dispute.DecisionSeller)
	}
	if err != nil {
		return Order{}, err
	}

	if ok, err := s.disputes.Resolve(ctx, disputeID, status, arbiterID, s.now().UTC()); err != nil {
		return Order{}, fault.Store(err)
	} else if !ok {
		// Funds already moved under the order lock, so a lost stamp here
		// means a concurrent resolver; the money is safe either way.
		return Order{}, fault.ErrAlreadyResolved
	}

	s.notify(ctx, notification.KindDisputeResolved, o.BuyerID, o.ID,
		fmt.Sprintf("dispute resolved in favor of the %s", decision))
	s.notify(ctx, notification.KindDisputeResolved, o.SellerID, o.ID,
		fmt.Sprintf("dispute resolved in favor of the %s", decision))
	return o, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, orderID string) (Order, error) {
	return s.load(ctx, orderID)
}

// List returns the orders a user participates in, newest first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

// EscrowStatus returns the escrow account backing an order.
func (s *Service) EscrowStatus(ctx context.Context, orderID string) (escrow.Account, error) {
	acct, found, err := s.escrow.Status(ctx, orderID)
	if err != nil {
		return escrow.Account{}, err
	}
	if !found {
		return escrow.Account{}, fault.ErrNoEscrowFound
	}
	return acct, nil
}

// Trail returns the ledger transactions behind an order.
func (s *Service) Trail(ctx context.Context, orderID string) (Order, []ledger.Transaction, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, nil, err
	}
	txs, err := s.wallets.OrderTrail(ctx, orderID)
	if err != nil {
		return Order{}, nil, err
	}
	return o, txs, nil
}

// release pays the seller and stamps the order VERIFIED. Caller holds the
// order lock and has already validated actor and state. If the ledger
// already shows a release (a crash between ledger write and order stamp),
// the stamp is healed instead of failing.
func (s *Service) release(ctx context.Context, o Order) (Order, error) {
	if _, err := s.wallets.Release(ctx, o.ID, o.SellerID); err != nil {
		if !errors.Is(err, fault.ErrAlreadyResolved) {
			return Order{}, err
		}
		derived, ok, derr := s.derivedStatus(ctx, o.ID)
		if derr != nil {
			return Order{}, derr
		}
		if !ok || derived != escrow.StatusReleased {
			return Order{}, err
		}
		s.logger.Warn("healing half-applied release", slog.String("order_id", o.ID))
	}

	if _, err := s.escrow.Release(ctx, o.ID); err != nil && !errors.Is(err, fault.ErrAlreadyResolved) {
		return Order{}, err
	}

	at := s.now().UTC()
	o.Status = StatusVerified
	o.EscrowStatus = escrow.StatusReleased
	o.VerifiedAt = &at
	if err := s.repo.Update(ctx, o); err != nil {
		return Order{}, err
	}

	s.notify(ctx, notification.KindPaymentReleased, o.SellerID, o.ID,
		fmt.Sprintf("escrow of %d released to your wallet", o.Amount))
	return o, nil
}

// refund returns the escrow to the buyer and stamps the order REFUNDED.
// Same healing rule as release, in the refund direction.
func (s *Service) refund(ctx context.Context, o Order) (Order, error) {
	if _, err := s.wallets.Refund(ctx, o.ID); err != nil {
		if !errors.Is(err, fault.ErrAlreadyResolved) {
			return Order{}, err
		}
		derived, ok, derr := s.derivedStatus(ctx, o.ID)
		if derr != nil {
			return Order{}, derr
		}
		if !ok || derived != escrow.StatusRefunded {
			return Order{}, err
		}
		s.logger.Warn("healing half-applied refund", slog.String("order_id", o.ID))
	}

	if _, err := s.escrow.Refund(ctx, o.ID); err != nil && !errors.Is(err, fault.ErrAlreadyResolved) {
		return Order{}, err
	}

	o.Status = StatusRefunded
	o.EscrowStatus = escrow.StatusRefunded
	if err := s.repo.Update(ctx, o); err != nil {
		return Order{}, err
	}

	s.notify(ctx, notification.KindRefundIssued, o.BuyerID, o.ID,
		fmt.Sprintf("escrow of %d refunded to your wallet", o.Amount))
	return o, nil
}

func (s *Service) derivedStatus(ctx context.Context, orderID string) (escrow.Status, bool, error) {
	txs, err := s.wallets.OrderTrail(ctx, orderID)
	if err != nil {
		return "", false, err
	}
	status, ok := escrow.StatusFromTransactions(txs)
	return status, ok, nil
}

func (s *Service) load(ctx context.Context, orderID string) (Order, error) {
	o, found, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !found {
		return Order{}, fault.ErrOrderNotFound
	}
	return o, nil
}

// requireDelivered gates direct verification. A disputed order can only
// reach VERIFIED through an arbiter ruling.
func (s *Service) requireDelivered(o Order) error {
	if o.Status == StatusDelivered {
		return nil
	}
	if Terminal(o.Status) {
		return fmt.Errorf("%w: order is already %s", fault.ErrAlreadyResolved, o.Status)
	}
	return fmt.Errorf("%w: %s -> %s", fault.ErrInvalidTransition, o.Status, StatusVerified)
}

func (s *Service) checkTransition(o Order, to string) error {
	if Terminal(o.Status) {
		return fmt.Errorf("%w: order is already %s", fault.ErrAlreadyResolved, o.Status)
	}
	if !IsValidTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", fault.ErrInvalidTransition, o.Status, to)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, kind, recipient, orderID, body string) {
	if s.notifier == nil {
		return
	}
	msg := notification.Message{Kind: kind, Recipient: recipient, OrderID: orderID, Body: body}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("notification send failed",
			slog.String("kind", kind), slog.String("order_id", orderID), slog.Any("error", err))
	}
}
