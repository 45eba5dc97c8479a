package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecodeli/delivery-engine/internal/api/metrics"
	"github.com/ecodeli/delivery-engine/internal/core/domain"
	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

// LedgerGuard records that the ledger trigger has been dispatched for a
// delivery, so a retry after a partial failure never pays twice.
type LedgerGuard interface {
	// FirstDispatch returns true when this call is the first dispatch for
	// the delivery id.
	FirstDispatch(ctx context.Context, deliveryID string) (bool, error)
	// Release frees the slot after a failed dispatch so the caller's retry
	// can claim it again.
	Release(ctx context.Context, deliveryID string) error
}

// DeliveryService owns the delivery entity and its state machine.
type DeliveryService struct {
	deliveries    ports.DeliveryRepository
	announcements ports.AnnouncementRepository
	routes        ports.RouteRepository
	matches       ports.MatchRepository
	tracking      ports.TrackingRepository
	identity      ports.Identity
	ledger        ports.LedgerTrigger
	guard         LedgerGuard
	notifier      ports.Notifier
	log           zerolog.Logger
}

func NewDeliveryService(
	deliveries ports.DeliveryRepository,
	announcements ports.AnnouncementRepository,
	routes ports.RouteRepository,
	matches ports.MatchRepository,
	tracking ports.TrackingRepository,
	identity ports.Identity,
	ledger ports.LedgerTrigger,
	guard LedgerGuard,
	notifier ports.Notifier,
	log zerolog.Logger,
) *DeliveryService {
	return &DeliveryService{
		deliveries:    deliveries,
		announcements: announcements,
		routes:        routes,
		matches:       matches,
		tracking:      tracking,
		identity:      identity,
		ledger:        ledger,
		guard:         guard,
		notifier:      notifier,
		log:           log,
	}
}

// CreateFromMatch instantiates the delivery for an accepted match, with a
// fresh validation code. Exactly one delivery exists per accepted match;
// the matching engine guarantees it only calls this once per acceptance.
func (s *DeliveryService) CreateFromMatch(ctx context.Context, m *domain.Match, a *domain.Announcement) (*domain.Delivery, error) {
	now := time.Now().UTC()
	d := &domain.Delivery{
		MatchID:          m.ID,
		AnnouncementID:   a.ID,
		RouteID:          m.RouteID,
		ClientID:         a.ClientID,
		CarrierID:        m.CarrierID,
		Status:           domain.DeliveryPending,
		Version:          1,
		ValidationCode:   generateValidationCode(),
		ReservedWeightKg: a.Package.WeightKg,
		ReservedVolumeM3: a.Package.VolumeM3,
		CreatedAt:        now,
	}
	if m.Direct() {
		d.ReservedWeightKg = 0
		d.ReservedVolumeM3 = 0
	}

	if err := s.deliveries.Create(ctx, d); err != nil {
		return nil, err
	}

	s.appendEvent(ctx, d, "", domain.DeliveryPending, "", "match accepted", nil, now)

	s.log.Info().
		Str("delivery_id", d.ID).
		Str("match_id", m.ID).
		Str("carrier_id", d.CarrierID).
		Msg("delivery created")
	return d, nil
}

func (s *DeliveryService) Get(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	return s.deliveries.FindByID(ctx, deliveryID)
}

func (s *DeliveryService) List(ctx context.Context, filter ports.ListDeliveriesFilter) ([]*domain.Delivery, int64, error) {
	return s.deliveries.List(ctx, filter)
}

// Accept is the assigned carrier confirming the job.
func (s *DeliveryService) Accept(ctx context.Context, in ports.TransitionInput) error {
	d, err := s.deliveries.FindByID(ctx, in.DeliveryID)
	if err != nil {
		return err
	}
	if err := s.requireCarrier(ctx, in.ActorID, d); err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.transition(ctx, d, domain.DeliveryAccepted,
		ports.TransitionUpdate{AcceptedAt: &now}, in, now)
}

// MarkPickedUp records the physical pickup. The announced window start is a
// soft guard: an early pickup goes through, annotated on the tracking event.
func (s *DeliveryService) MarkPickedUp(ctx context.Context, in ports.TransitionInput) error {
	d, err := s.deliveries.FindByID(ctx, in.DeliveryID)
	if err != nil {
		return err
	}
	if err := s.requireCarrier(ctx, in.ActorID, d); err != nil {
		return err
	}

	now := time.Now().UTC()
	if a, err := s.announcements.FindByID(ctx, d.AnnouncementID); err == nil && now.Before(a.Window.Start) {
		if in.Note != "" {
			in.Note += "; "
		}
		in.Note += "picked up before announced window start"
	}

	if err := s.transition(ctx, d, domain.DeliveryPickedUp,
		ports.TransitionUpdate{PickedUpAt: &now}, in, now); err != nil {
		return err
	}

	s.flipAnnouncement(ctx, d.AnnouncementID, domain.AnnouncementMatched, domain.AnnouncementInProgress)
	return nil
}

// MarkInTransit records the carrier's departure towards the destination.
func (s *DeliveryService) MarkInTransit(ctx context.Context, in ports.TransitionInput) error {
	d, err := s.deliveries.FindByID(ctx, in.DeliveryID)
	if err != nil {
		return err
	}
	if err := s.requireCarrier(ctx, in.ActorID, d); err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.transition(ctx, d, domain.DeliveryInTransit,
		ports.TransitionUpdate{InTransitAt: &now}, in, now)
}

// Confirm finalises a delivered delivery and releases payment. The proof
// record must exist; the announcement completes; the ledger trigger fires
// exactly once per delivery id.
func (s *DeliveryService) Confirm(ctx context.Context, in ports.TransitionInput) error {
	d, err := s.deliveries.FindByID(ctx, in.DeliveryID)
	if err != nil {
		return err
	}
	if err := s.requireClientOrAdmin(ctx, in.ActorID, d); err != nil {
		return err
	}
	if d.Proof == nil {
		return domain.ErrInvalidTransition
	}

	now := time.Now().UTC()
	if err := s.transition(ctx, d, domain.DeliveryConfirmed,
		ports.TransitionUpdate{ConfirmedAt: &now}, in, now); err != nil {
		return err
	}

	s.flipAnnouncement(ctx, d.AnnouncementID, domain.AnnouncementInProgress, domain.AnnouncementCompleted)

	if err := s.dispatchLedger(ctx, d); err != nil {
		// The delivery stays confirmed; the caller retries the trigger.
		return fmt.Errorf("ledger trigger: %w", err)
	}

	s.notifier.Notify(d.CarrierID, "delivery.confirmed", map[string]any{"delivery_id": d.ID})
	return nil
}

// Cancel aborts a non-terminal delivery. Cancelling after the validation
// code has been consumed is disallowed; use Dispute instead.
func (s *DeliveryService) Cancel(ctx context.Context, in ports.TransitionInput) error {
	d, err := s.deliveries.FindByID(ctx, in.DeliveryID)
	if err != nil {
		return err
	}
	if err := s.requireClientOrAdmin(ctx, in.ActorID, d); err != nil {
		return err
	}
	if d.CodeConsumed {
		return domain.ErrInvalidTransition
	}

	now := time.Now().UTC()
	release := !d.CapacityReleased && d.RouteID != ""
	upd := ports.TransitionUpdate{CancelledAt: &now}
	if release {
		released := true
		upd.CapacityReleased = &released
	}

	if err := s.transition(ctx, d, domain.DeliveryCancelled, upd, in, now); err != nil {
		return err
	}

	// Only the transition winner reaches this point, so the capacity comes
	// back exactly once.
	if release {
		if err := s.routes.ReleaseCapacity(ctx, d.RouteID, d.ReservedWeightKg, d.ReservedVolumeM3); err != nil {
			s.log.Error().Err(err).
				Str("delivery_id", d.ID).
				Str("route_id", d.RouteID).
				Msg("failed to restore route capacity")
		}
	}
	if err := s.matches.MarkReleased(ctx, d.MatchID); err != nil {
		s.log.Warn().Err(err).Str("match_id", d.MatchID).Msg("failed to release match")
	}

	// Reopen the announcement so it can be matched again.
	if flipped, _ := s.announcements.UpdateStatusIf(ctx, d.AnnouncementID, domain.AnnouncementMatched, domain.AnnouncementOpen); !flipped {
		s.flipAnnouncement(ctx, d.AnnouncementID, domain.AnnouncementInProgress, domain.AnnouncementOpen)
	}

	s.notifier.Notify(d.CarrierID, "delivery.cancelled", map[string]any{"delivery_id": d.ID, "reason": in.Note})
	return nil
}

// Dispute flags a delivery for manual resolution.
func (s *DeliveryService) Dispute(ctx context.Context, in ports.TransitionInput) error {
	d, err := s.deliveries.FindByID(ctx, in.DeliveryID)
	if err != nil {
		return err
	}
	if err := s.requireClientOrAdmin(ctx, in.ActorID, d); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.transition(ctx, d, domain.DeliveryDisputed,
		ports.TransitionUpdate{DisputedAt: &now}, in, now); err != nil {
		return err
	}

	s.notifier.Notify(d.CarrierID, "delivery.disputed", map[string]any{"delivery_id": d.ID, "reason": in.Note})
	return nil
}

func (s *DeliveryService) Events(ctx context.Context, deliveryID string) ([]*domain.TrackingEvent, error) {
	if _, err := s.deliveries.FindByID(ctx, deliveryID); err != nil {
		return nil, err
	}
	return s.tracking.ListByDelivery(ctx, deliveryID)
}

// transition applies one guarded state change: table check, version CAS,
// tracking event append, notification. Concurrent conflicting attempts are
// serialized by the CAS; only one wins.
func (s *DeliveryService) transition(ctx context.Context, d *domain.Delivery, to domain.DeliveryStatus, upd ports.TransitionUpdate, in ports.TransitionInput, now time.Time) error {
	if !d.Status.CanTransitionTo(to) {
		metrics.TransitionsTotal.WithLabelValues(string(to), "invalid").Inc()
		return fmt.Errorf("%w (from %s to %s)", domain.ErrInvalidTransition, d.Status, to)
	}

	ok, err := s.deliveries.TransitionStatus(ctx, d.ID, d.Status, to, d.Version, upd)
	if err != nil {
		return fmt.Errorf("transition %s to %s: %w", d.Status, to, err)
	}
	if !ok {
		metrics.TransitionsTotal.WithLabelValues(string(to), "conflict").Inc()
		return domain.ErrConcurrencyConflict
	}
	metrics.TransitionsTotal.WithLabelValues(string(to), "ok").Inc()

	s.appendEvent(ctx, d, d.Status, to, in.ActorID, in.Note, in.Location, now)

	s.log.Info().
		Str("delivery_id", d.ID).
		Str("from", string(d.Status)).
		Str("to", string(to)).
		Str("actor_id", in.ActorID).
		Msg("delivery transition")

	s.notifier.Notify(d.ClientID, "delivery."+string(to), map[string]any{"delivery_id": d.ID})

	d.Status = to
	d.Version++
	return nil
}

// appendEvent writes the audit trail entry. Failures are logged, not
// propagated: the state change already committed.
func (s *DeliveryService) appendEvent(ctx context.Context, d *domain.Delivery, from, to domain.DeliveryStatus, actorID, note string, loc *domain.Coordinates, ts time.Time) {
	ev := &domain.TrackingEvent{
		DeliveryID: d.ID,
		Seq:        d.Version + 1,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actorID,
		Timestamp:  ts,
		Location:   loc,
		Note:       note,
	}
	if from == "" {
		ev.Seq = d.Version
	}
	if err := s.tracking.Append(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("delivery_id", d.ID).Msg("failed to append tracking event")
	}
}

func (s *DeliveryService) dispatchLedger(ctx context.Context, d *domain.Delivery) error {
	first, err := s.guard.FirstDispatch(ctx, d.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("delivery_id", d.ID).Msg("ledger guard unavailable, dispatching anyway")
	} else if !first {
		metrics.LedgerDispatchesTotal.WithLabelValues("duplicate").Inc()
		s.log.Debug().Str("delivery_id", d.ID).Msg("ledger already dispatched")
		return nil
	}

	amount, currency := 0.0, ""
	if a, err := s.announcements.FindByID(ctx, d.AnnouncementID); err == nil {
		amount, currency = a.Price, a.Currency
	}

	if err := s.ledger.OnDeliveryConfirmed(ctx, ports.LedgerEntry{
		DeliveryID: d.ID,
		Amount:     amount,
		Currency:   currency,
		PayerID:    d.ClientID,
		PayeeID:    d.CarrierID,
	}); err != nil {
		metrics.LedgerDispatchesTotal.WithLabelValues("error").Inc()
		if relErr := s.guard.Release(ctx, d.ID); relErr != nil {
			s.log.Error().Err(relErr).Str("delivery_id", d.ID).Msg("failed to release ledger guard")
		}
		return err
	}
	metrics.LedgerDispatchesTotal.WithLabelValues("ok").Inc()
	return nil
}

func (s *DeliveryService) requireCarrier(ctx context.Context, actorID string, d *domain.Delivery) error {
	assigned, err := s.identity.IsAssignedCarrier(ctx, actorID, d.ID)
	if err != nil {
		return fmt.Errorf("carrier check: %w", err)
	}
	if assigned {
		return nil
	}
	return s.requireAdmin(ctx, actorID)
}

func (s *DeliveryService) requireClientOrAdmin(ctx context.Context, actorID string, d *domain.Delivery) error {
	if actorID == d.ClientID {
		return nil
	}
	return s.requireAdmin(ctx, actorID)
}

func (s *DeliveryService) requireAdmin(ctx context.Context, actorID string) error {
	isAdmin, err := s.identity.HasRole(ctx, actorID, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("role check: %w", err)
	}
	if !isAdmin {
		return domain.ErrUnauthorized
	}
	return nil
}

func (s *DeliveryService) flipAnnouncement(ctx context.Context, id string, from, to domain.AnnouncementStatus) {
	flipped, err := s.announcements.UpdateStatusIf(ctx, id, from, to)
	if err != nil {
		s.log.Error().Err(err).Str("announcement_id", id).Msg("failed to flip announcement status")
		return
	}
	if !flipped {
		s.log.Warn().
			Str("announcement_id", id).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("announcement status flip lost")
	}
}
