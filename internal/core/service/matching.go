package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecodeli/delivery-engine/internal/api/metrics"
	"github.com/ecodeli/delivery-engine/internal/core/domain"
	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

// MatchingConfig exposes the scoring knobs as parameters rather than
// hardcoded law. Weights are normalised by their sum.
type MatchingConfig struct {
	MaxDistanceKm   float64
	ProximityWeight float64
	PriceWeight     float64
	CandidateLimit  int
	ProposalLimit   int
	ProposalTTL     time.Duration
	// AutoAcceptScore accepts the top proposal immediately when it scores
	// at or above this threshold. Zero disables auto-acceptance.
	AutoAcceptScore float64
}

func (c MatchingConfig) withDefaults() MatchingConfig {
	if c.MaxDistanceKm <= 0 {
		c.MaxDistanceKm = 50
	}
	if c.ProximityWeight <= 0 && c.PriceWeight <= 0 {
		c.ProximityWeight = 0.7
		c.PriceWeight = 0.3
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = 200
	}
	if c.ProposalLimit <= 0 {
		c.ProposalLimit = 10
	}
	if c.ProposalTTL <= 0 {
		c.ProposalTTL = 24 * time.Hour
	}
	return c
}

// DeliveryCreator is the slice of the delivery lifecycle the matcher hands
// off to once a match is accepted.
type DeliveryCreator interface {
	CreateFromMatch(ctx context.Context, m *domain.Match, a *domain.Announcement) (*domain.Delivery, error)
}

// MatchingService pairs announcements with routes.
type MatchingService struct {
	announcements ports.AnnouncementRepository
	routes        ports.RouteRepository
	matches       ports.MatchRepository
	geo           *GeoService
	deliveries    DeliveryCreator
	identity      ports.Identity
	notifier      ports.Notifier
	cfg           MatchingConfig
	log           zerolog.Logger
}

func NewMatchingService(
	announcements ports.AnnouncementRepository,
	routes ports.RouteRepository,
	matches ports.MatchRepository,
	geo *GeoService,
	deliveries DeliveryCreator,
	identity ports.Identity,
	notifier ports.Notifier,
	cfg MatchingConfig,
	log zerolog.Logger,
) *MatchingService {
	return &MatchingService{
		announcements: announcements,
		routes:        routes,
		matches:       matches,
		geo:           geo,
		deliveries:    deliveries,
		identity:      identity,
		notifier:      notifier,
		cfg:           cfg.withDefaults(),
		log:           log,
	}
}

// candidate is an internal scored pairing before persistence.
type candidate struct {
	announcement *domain.Announcement
	route        *domain.Route
	score        float64
}

// ProposeForAnnouncement enumerates compatible routes for an open
// announcement, scores them, persists the proposals and returns them ranked.
func (s *MatchingService) ProposeForAnnouncement(ctx context.Context, announcementID string) ([]ports.MatchProposal, error) {
	a, err := s.announcements.FindByID(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	if a.Status != domain.AnnouncementOpen {
		return nil, domain.ErrAnnouncementNotOpen
	}

	now := time.Now().UTC()
	routes, err := s.routes.ListDeparting(ctx, now, s.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("list candidate routes: %w", err)
	}

	var cands []candidate
	for _, r := range routes {
		if !r.Fits(a.Package) || !r.CoversWindow(a.Window) {
			continue
		}
		score, err := s.score(a, r)
		if err != nil {
			return nil, err
		}
		if score <= 0 {
			continue
		}
		cands = append(cands, candidate{announcement: a, route: r, score: score})
	}

	proposals, err := s.persistRanked(ctx, cands, now)
	if err != nil {
		return nil, err
	}
	metrics.MatchesProposedTotal.WithLabelValues("announcement").Add(float64(len(proposals)))

	s.log.Info().
		Str("announcement_id", a.ID).
		Int("candidates", len(routes)).
		Int("proposals", len(proposals)).
		Msg("matches proposed")

	for _, p := range proposals {
		s.notifier.Notify(p.CarrierID, "match.proposed", map[string]any{
			"match_id":        p.MatchID,
			"announcement_id": p.AnnouncementID,
			"score":           p.Score,
		})
	}

	s.maybeAutoAccept(ctx, proposals)
	return proposals, nil
}

// ProposeForRoute enumerates compatible open announcements for a route.
func (s *MatchingService) ProposeForRoute(ctx context.Context, routeID string) ([]ports.MatchProposal, error) {
	r, err := s.routes.FindByID(ctx, routeID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	open, err := s.announcements.ListOpen(ctx, now, s.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("list open announcements: %w", err)
	}

	var cands []candidate
	for _, a := range open {
		if !r.Fits(a.Package) || !r.CoversWindow(a.Window) {
			continue
		}
		score, err := s.score(a, r)
		if err != nil {
			return nil, err
		}
		if score <= 0 {
			continue
		}
		cands = append(cands, candidate{announcement: a, route: r, score: score})
	}

	proposals, err := s.persistRanked(ctx, cands, now)
	if err != nil {
		return nil, err
	}
	metrics.MatchesProposedTotal.WithLabelValues("route").Add(float64(len(proposals)))

	s.log.Info().
		Str("route_id", r.ID).
		Int("candidates", len(open)).
		Int("proposals", len(proposals)).
		Msg("matches proposed")

	s.notifier.Notify(r.CarrierID, "match.proposed", map[string]any{
		"route_id": r.ID,
		"count":    len(proposals),
	})
	return proposals, nil
}

// OfferDirect records a carrier volunteering for an open announcement without
// a declared route. An explicit offer is a commitment, not an algorithmic
// guess, so it carries the maximum score and ranks ahead of computed
// proposals. Accepting it reserves no route capacity.
func (s *MatchingService) OfferDirect(ctx context.Context, in ports.DirectOfferInput) (ports.MatchProposal, error) {
	isCarrier, err := s.identity.HasRole(ctx, in.CarrierID, domain.RoleCarrier)
	if err != nil {
		return ports.MatchProposal{}, fmt.Errorf("role check: %w", err)
	}
	if !isCarrier {
		return ports.MatchProposal{}, domain.ErrUnauthorized
	}

	a, err := s.announcements.FindByID(ctx, in.AnnouncementID)
	if err != nil {
		return ports.MatchProposal{}, err
	}
	if a.Status != domain.AnnouncementOpen {
		return ports.MatchProposal{}, domain.ErrAnnouncementNotOpen
	}

	now := time.Now().UTC()
	m := &domain.Match{
		AnnouncementID: a.ID,
		CarrierID:      in.CarrierID,
		Score:          1,
		Status:         domain.MatchProposed,
		ProposedAt:     now,
		ExpiresAt:      now.Add(s.cfg.ProposalTTL),
	}
	if err := s.matches.CreateBatch(ctx, []*domain.Match{m}); err != nil {
		return ports.MatchProposal{}, fmt.Errorf("persist direct offer: %w", err)
	}
	metrics.MatchesProposedTotal.WithLabelValues("direct").Inc()

	s.log.Info().
		Str("announcement_id", a.ID).
		Str("carrier_id", in.CarrierID).
		Str("match_id", m.ID).
		Msg("direct offer recorded")

	s.notifier.Notify(a.ClientID, "match.offered", map[string]any{
		"match_id":   m.ID,
		"carrier_id": in.CarrierID,
	})

	return ports.MatchProposal{
		MatchID:        m.ID,
		AnnouncementID: a.ID,
		CarrierID:      in.CarrierID,
		Score:          m.Score,
		ProposedAt:     now,
		ExpiresAt:      m.ExpiresAt,
	}, nil
}

// AcceptMatch is the sole capacity-mutating operation. The announcement
// status CAS is the linearization point: of two concurrent acceptances for
// the same announcement exactly one flips open to matched, the other gets
// domain.ErrConcurrencyConflict. Downstream failures compensate back.
func (s *MatchingService) AcceptMatch(ctx context.Context, in ports.AcceptMatchInput) (*domain.Delivery, error) {
	return s.acceptMatch(ctx, in, "manual")
}

func (s *MatchingService) acceptMatch(ctx context.Context, in ports.AcceptMatchInput, mode string) (*domain.Delivery, error) {
	m, err := s.matches.FindByID(ctx, in.MatchID)
	if err != nil {
		return nil, err
	}
	switch m.Status {
	case domain.MatchProposed:
	case domain.MatchAccepted:
		return nil, domain.ErrConcurrencyConflict
	default:
		return nil, domain.ErrMatchExpired
	}

	now := time.Now().UTC()
	if !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt) {
		return nil, domain.ErrMatchExpired
	}

	if err := s.authorizeAccept(ctx, in.ActorID, m); err != nil {
		return nil, err
	}

	a, err := s.announcements.FindByID(ctx, m.AnnouncementID)
	if err != nil {
		return nil, err
	}

	flipped, err := s.announcements.UpdateStatusIf(ctx, a.ID, domain.AnnouncementOpen, domain.AnnouncementMatched)
	if err != nil {
		return nil, fmt.Errorf("flip announcement: %w", err)
	}
	if !flipped {
		return nil, domain.ErrConcurrencyConflict
	}

	if !m.Direct() {
		if err := s.routes.ReserveCapacity(ctx, m.RouteID, a.Package.WeightKg, a.Package.VolumeM3); err != nil {
			s.revertAnnouncement(ctx, a.ID)
			return nil, err
		}
	}

	accepted, err := s.matches.MarkAccepted(ctx, m.ID, now)
	if err == nil && !accepted {
		err = domain.ErrConcurrencyConflict
	}
	if err != nil {
		s.compensate(ctx, m, a)
		return nil, err
	}
	m.Status = domain.MatchAccepted
	m.AcceptedAt = &now

	d, err := s.deliveries.CreateFromMatch(ctx, m, a)
	if err != nil {
		s.compensate(ctx, m, a)
		return nil, fmt.Errorf("create delivery: %w", err)
	}
	metrics.MatchesAcceptedTotal.WithLabelValues(mode).Inc()

	s.log.Info().
		Str("match_id", m.ID).
		Str("announcement_id", a.ID).
		Str("delivery_id", d.ID).
		Float64("score", m.Score).
		Msg("match accepted")

	s.notifier.Notify(a.ClientID, "match.accepted", map[string]any{
		"match_id":    m.ID,
		"delivery_id": d.ID,
		"carrier_id":  m.CarrierID,
	})
	return d, nil
}

func (s *MatchingService) authorizeAccept(ctx context.Context, actorID string, m *domain.Match) error {
	if actorID == m.CarrierID {
		return nil
	}
	isAdmin, err := s.identity.HasRole(ctx, actorID, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("role check: %w", err)
	}
	if !isAdmin {
		return domain.ErrUnauthorized
	}
	return nil
}

// score combines the proximity of both endpoints with a price-fit term.
func (s *MatchingService) score(a *domain.Announcement, r *domain.Route) (float64, error) {
	originKm, err := s.geo.Distance(a.Origin.Coordinates, r.Origin.Coordinates)
	if err != nil {
		return 0, err
	}
	destKm, err := s.geo.Distance(a.Destination.Coordinates, r.Destination.Coordinates)
	if err != nil {
		return 0, err
	}

	prox := (s.geo.ProximityScore(originKm, s.cfg.MaxDistanceKm) +
		s.geo.ProximityScore(destKm, s.cfg.MaxDistanceKm)) / 2

	cost := r.PricePerKg * a.Package.WeightKg
	priceFit := 1.0
	if cost > 0 {
		priceFit = a.Price / cost
		if priceFit > 1 {
			priceFit = 1
		}
		if priceFit < 0 {
			priceFit = 0
		}
	}

	total := s.cfg.ProximityWeight + s.cfg.PriceWeight
	return (s.cfg.ProximityWeight*prox + s.cfg.PriceWeight*priceFit) / total, nil
}

// persistRanked orders candidates deterministically (score descending, then
// earliest route departure, creation order last), trims to the proposal
// limit, and stores the surviving proposals.
func (s *MatchingService) persistRanked(ctx context.Context, cands []candidate, now time.Time) ([]ports.MatchProposal, error) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].route.DepartureAt.Before(cands[j].route.DepartureAt)
	})
	if len(cands) > s.cfg.ProposalLimit {
		cands = cands[:s.cfg.ProposalLimit]
	}
	if len(cands) == 0 {
		return nil, nil
	}

	matches := make([]*domain.Match, 0, len(cands))
	for _, c := range cands {
		matches = append(matches, &domain.Match{
			AnnouncementID: c.announcement.ID,
			RouteID:        c.route.ID,
			CarrierID:      c.route.CarrierID,
			Score:          c.score,
			Status:         domain.MatchProposed,
			ProposedAt:     now,
			ExpiresAt:      now.Add(s.cfg.ProposalTTL),
		})
	}
	if err := s.matches.CreateBatch(ctx, matches); err != nil {
		return nil, fmt.Errorf("persist proposals: %w", err)
	}

	proposals := make([]ports.MatchProposal, 0, len(matches))
	for i, m := range matches {
		proposals = append(proposals, ports.MatchProposal{
			MatchID:        m.ID,
			AnnouncementID: m.AnnouncementID,
			RouteID:        m.RouteID,
			CarrierID:      m.CarrierID,
			Score:          m.Score,
			RouteDeparture: cands[i].route.DepartureAt,
			ProposedAt:     m.ProposedAt,
			ExpiresAt:      m.ExpiresAt,
		})
	}
	return proposals, nil
}

func (s *MatchingService) maybeAutoAccept(ctx context.Context, proposals []ports.MatchProposal) {
	if s.cfg.AutoAcceptScore <= 0 || len(proposals) == 0 {
		return
	}
	top := proposals[0]
	if top.Score < s.cfg.AutoAcceptScore {
		return
	}
	if _, err := s.acceptMatch(ctx, ports.AcceptMatchInput{MatchID: top.MatchID, ActorID: top.CarrierID}, "auto"); err != nil {
		s.log.Warn().Err(err).Str("match_id", top.MatchID).Msg("auto-accept failed")
	}
}

func (s *MatchingService) revertAnnouncement(ctx context.Context, id string) {
	if _, err := s.announcements.UpdateStatusIf(ctx, id, domain.AnnouncementMatched, domain.AnnouncementOpen); err != nil {
		s.log.Error().Err(err).Str("announcement_id", id).Msg("failed to revert announcement status")
	}
}

func (s *MatchingService) compensate(ctx context.Context, m *domain.Match, a *domain.Announcement) {
	// An acceptance that already landed must be undone too, or the
	// announcement could end up holding two accepted matches once a later
	// acceptance succeeds.
	if m.Status == domain.MatchAccepted {
		if err := s.matches.MarkReleased(ctx, m.ID); err != nil {
			s.log.Error().Err(err).Str("match_id", m.ID).Msg("failed to release accepted match")
		}
	}
	if !m.Direct() {
		if err := s.routes.ReleaseCapacity(ctx, m.RouteID, a.Package.WeightKg, a.Package.VolumeM3); err != nil {
			s.log.Error().Err(err).Str("route_id", m.RouteID).Msg("failed to release reserved capacity")
		}
	}
	s.revertAnnouncement(ctx, a.ID)
}
