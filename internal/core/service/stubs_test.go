package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

// The in-memory repositories below mirror the conditional-update semantics
// of the real mongo implementations, including the CAS guards, so the
// concurrency tests exercise the same win/lose behaviour.

type memAnnouncementRepo struct {
	mu    sync.Mutex
	seq   int
	items map[string]*domain.Announcement
}

func newMemAnnouncementRepo() *memAnnouncementRepo {
	return &memAnnouncementRepo{items: make(map[string]*domain.Announcement)}
}

func (r *memAnnouncementRepo) Create(_ context.Context, a *domain.Announcement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	a.ID = "a" + strconv.Itoa(r.seq)
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *memAnnouncementRepo) FindByID(_ context.Context, id string) (*domain.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, domain.ErrAnnouncementNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAnnouncementRepo) Update(_ context.Context, a *domain.Announcement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[a.ID]
	if !ok {
		return domain.ErrAnnouncementNotFound
	}
	if cur.Status != domain.AnnouncementOpen {
		return domain.ErrAnnouncementNotOpen
	}
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *memAnnouncementRepo) List(_ context.Context, filter ports.ListAnnouncementsFilter) ([]*domain.Announcement, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Announcement
	for _, a := range r.items {
		if filter.ClientID != "" && a.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && string(a.Status) != filter.Status {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *memAnnouncementRepo) ListOpen(_ context.Context, now time.Time, limit int) ([]*domain.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Announcement
	for _, a := range r.items {
		if a.Status == domain.AnnouncementOpen && a.Window.End.After(now) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAnnouncementRepo) UpdateStatusIf(_ context.Context, id string, from, to domain.AnnouncementStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	return true, nil
}

type memRouteRepo struct {
	mu    sync.Mutex
	seq   int
	items map[string]*domain.Route
}

func newMemRouteRepo() *memRouteRepo {
	return &memRouteRepo{items: make(map[string]*domain.Route)}
}

func (r *memRouteRepo) Create(_ context.Context, rt *domain.Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	rt.ID = "r" + strconv.Itoa(r.seq)
	cp := *rt
	r.items[rt.ID] = &cp
	return nil
}

func (r *memRouteRepo) FindByID(_ context.Context, id string) (*domain.Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.items[id]
	if !ok {
		return nil, domain.ErrRouteNotFound
	}
	cp := *rt
	return &cp, nil
}

func (r *memRouteRepo) ListByCarrier(_ context.Context, carrierID string) ([]*domain.Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Route
	for _, rt := range r.items {
		if rt.CarrierID == carrierID {
			cp := *rt
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRouteRepo) ListDeparting(_ context.Context, after time.Time, limit int) ([]*domain.Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Route
	for _, rt := range r.items {
		if !rt.DepartureAt.Before(after) {
			cp := *rt
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureAt.Before(out[j].DepartureAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRouteRepo) ReserveCapacity(_ context.Context, id string, weightKg, volumeM3 float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.items[id]
	if !ok {
		return domain.ErrRouteNotFound
	}
	if rt.RemainingWeightKg < weightKg || rt.RemainingVolumeM3 < volumeM3 {
		return domain.ErrCapacityExceeded
	}
	rt.RemainingWeightKg -= weightKg
	rt.RemainingVolumeM3 -= volumeM3
	return nil
}

func (r *memRouteRepo) ReleaseCapacity(_ context.Context, id string, weightKg, volumeM3 float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.items[id]
	if !ok {
		return domain.ErrRouteNotFound
	}
	if rt.RemainingWeightKg+weightKg > rt.DeclaredWeightKg || rt.RemainingVolumeM3+volumeM3 > rt.DeclaredVolumeM3 {
		return domain.ErrCapacityExceeded
	}
	rt.RemainingWeightKg += weightKg
	rt.RemainingVolumeM3 += volumeM3
	return nil
}

type memMatchRepo struct {
	mu    sync.Mutex
	seq   int
	items map[string]*domain.Match
}

func newMemMatchRepo() *memMatchRepo {
	return &memMatchRepo{items: make(map[string]*domain.Match)}
}

func (r *memMatchRepo) CreateBatch(_ context.Context, matches []*domain.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range matches {
		r.seq++
		m.ID = "m" + strconv.Itoa(r.seq)
		cp := *m
		r.items[m.ID] = &cp
	}
	return nil
}

func (r *memMatchRepo) FindByID(_ context.Context, id string) (*domain.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *memMatchRepo) ListByAnnouncement(_ context.Context, announcementID string) ([]*domain.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Match
	for _, m := range r.items {
		if m.AnnouncementID == announcementID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (r *memMatchRepo) MarkAccepted(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok || m.Status != domain.MatchProposed {
		return false, nil
	}
	m.Status = domain.MatchAccepted
	t := at
	m.AcceptedAt = &t
	return true, nil
}

func (r *memMatchRepo) MarkReleased(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return domain.ErrMatchNotFound
	}
	m.Status = domain.MatchReleased
	return nil
}

type memDeliveryRepo struct {
	mu    sync.Mutex
	seq   int
	items map[string]*domain.Delivery
}

func newMemDeliveryRepo() *memDeliveryRepo {
	return &memDeliveryRepo{items: make(map[string]*domain.Delivery)}
}

func (r *memDeliveryRepo) Create(_ context.Context, d *domain.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	d.ID = "d" + strconv.Itoa(r.seq)
	cp := *d
	r.items[d.ID] = &cp
	return nil
}

func (r *memDeliveryRepo) FindByID(_ context.Context, id string) (*domain.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[id]
	if !ok {
		return nil, domain.ErrDeliveryNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memDeliveryRepo) List(_ context.Context, filter ports.ListDeliveriesFilter) ([]*domain.Delivery, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Delivery
	for _, d := range r.items {
		if filter.ClientID != "" && d.ClientID != filter.ClientID {
			continue
		}
		if filter.CarrierID != "" && d.CarrierID != filter.CarrierID {
			continue
		}
		if filter.Status != "" && string(d.Status) != filter.Status {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *memDeliveryRepo) TransitionStatus(_ context.Context, id string, from, to domain.DeliveryStatus, version int64, upd ports.TransitionUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[id]
	if !ok || d.Status != from || d.Version != version {
		return false, nil
	}
	d.Status = to
	d.Version++
	if upd.AcceptedAt != nil {
		d.AcceptedAt = upd.AcceptedAt
	}
	if upd.PickedUpAt != nil {
		d.PickedUpAt = upd.PickedUpAt
	}
	if upd.InTransitAt != nil {
		d.InTransitAt = upd.InTransitAt
	}
	if upd.ConfirmedAt != nil {
		d.ConfirmedAt = upd.ConfirmedAt
	}
	if upd.CancelledAt != nil {
		d.CancelledAt = upd.CancelledAt
	}
	if upd.DisputedAt != nil {
		d.DisputedAt = upd.DisputedAt
	}
	if upd.CapacityReleased != nil {
		d.CapacityReleased = *upd.CapacityReleased
	}
	return true, nil
}

func (r *memDeliveryRepo) ConsumeCodeAndDeliver(_ context.Context, id string, version int64, proof domain.ProofOfDelivery) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[id]
	if !ok || d.Status != domain.DeliveryInTransit || d.CodeConsumed || d.Version != version {
		return false, nil
	}
	d.Status = domain.DeliveryDelivered
	d.CodeConsumed = true
	d.Version++
	p := proof
	d.Proof = &p
	t := proof.ValidatedAt
	d.DeliveredAt = &t
	return true, nil
}

func (r *memDeliveryRepo) SetValidationCode(_ context.Context, id string, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[id]
	if !ok {
		return domain.ErrDeliveryNotFound
	}
	d.ValidationCode = code
	d.CodeConsumed = false
	return nil
}

type memTrackingRepo struct {
	mu     sync.Mutex
	seq    int
	events []*domain.TrackingEvent
}

func newMemTrackingRepo() *memTrackingRepo {
	return &memTrackingRepo{}
}

func (r *memTrackingRepo) Append(_ context.Context, event *domain.TrackingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	event.ID = "e" + strconv.Itoa(r.seq)
	cp := *event
	r.events = append(r.events, &cp)
	return nil
}

func (r *memTrackingRepo) ListByDelivery(_ context.Context, deliveryID string) ([]*domain.TrackingEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TrackingEvent
	for _, e := range r.events {
		if e.DeliveryID == deliveryID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

type memAuthRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*domain.User // keyed by id
}

func newMemAuthRepo() *memAuthRepo {
	return &memAuthRepo{users: make(map[string]*domain.User)}
}

func (r *memAuthRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.seq++
	cp := *u
	cp.ID = "u" + strconv.Itoa(r.seq)
	r.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memAuthRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memAuthRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// addUser seeds a user with a fixed id, bypassing Create's id assignment.
func (r *memAuthRepo) addUser(id, email, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = &domain.User{ID: id, Email: email, Role: role}
}

type memLedgerGuard struct {
	mu        sync.Mutex
	dispatched map[string]bool
}

func newMemLedgerGuard() *memLedgerGuard {
	return &memLedgerGuard{dispatched: make(map[string]bool)}
}

func (g *memLedgerGuard) FirstDispatch(_ context.Context, deliveryID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dispatched[deliveryID] {
		return false, nil
	}
	g.dispatched[deliveryID] = true
	return true, nil
}

func (g *memLedgerGuard) Release(_ context.Context, deliveryID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.dispatched, deliveryID)
	return nil
}

type recordingLedger struct {
	mu      sync.Mutex
	entries []ports.LedgerEntry
	err     error
}

func (l *recordingLedger) OnDeliveryConfirmed(_ context.Context, entry ports.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, entry)
	return nil
}

func (l *recordingLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, map[string]any) {}

// testEnv wires real services over the in-memory repositories, mirroring the
// construction in main.
type testEnv struct {
	announcements *memAnnouncementRepo
	routes        *memRouteRepo
	matches       *memMatchRepo
	deliveries    *memDeliveryRepo
	tracking      *memTrackingRepo
	users         *memAuthRepo
	guard         *memLedgerGuard
	ledger        *recordingLedger

	identity   *IdentityService
	delivery   *DeliveryService
	matching   *MatchingService
	validation *ValidationCodeService
}

func newTestEnv(cfg MatchingConfig) *testEnv {
	env := &testEnv{
		announcements: newMemAnnouncementRepo(),
		routes:        newMemRouteRepo(),
		matches:       newMemMatchRepo(),
		deliveries:    newMemDeliveryRepo(),
		tracking:      newMemTrackingRepo(),
		users:         newMemAuthRepo(),
		guard:         newMemLedgerGuard(),
		ledger:        &recordingLedger{},
	}
	log := zerolog.Nop()
	env.identity = NewIdentityService(env.users, env.deliveries)
	env.delivery = NewDeliveryService(
		env.deliveries, env.announcements, env.routes, env.matches,
		env.tracking, env.identity, env.ledger, env.guard, nopNotifier{}, log,
	)
	geo := NewGeoService(NewDistanceCache(64))
	env.matching = NewMatchingService(
		env.announcements, env.routes, env.matches, geo,
		env.delivery, env.identity, nopNotifier{}, cfg, log,
	)
	env.validation = NewValidationCodeService(
		env.deliveries, env.tracking, env.identity, nopNotifier{}, log,
	)

	env.users.addUser("client1", "client@example.com", domain.RoleClient)
	env.users.addUser("carrier1", "carrier@example.com", domain.RoleCarrier)
	env.users.addUser("admin1", "admin@example.com", domain.RoleAdmin)
	return env
}

func parisAddress() domain.Address {
	return domain.Address{
		Address:     "10 Rue de Rivoli",
		City:        "Paris",
		ZipCode:     "75001",
		Coordinates: domain.Coordinates{Lat: 48.8566, Lng: 2.3522},
	}
}

func lyonAddress() domain.Address {
	return domain.Address{
		Address:     "5 Place Bellecour",
		City:        "Lyon",
		ZipCode:     "69002",
		Coordinates: domain.Coordinates{Lat: 45.7640, Lng: 4.8357},
	}
}

// seedAnnouncement creates an open announcement for client1 departing soon.
func seedAnnouncement(t *testing.T, env *testEnv) *domain.Announcement {
	t.Helper()
	now := time.Now().UTC()
	a := &domain.Announcement{
		ClientID:    "client1",
		Title:       "Box of books",
		Origin:      parisAddress(),
		Destination: lyonAddress(),
		Window:      domain.TimeWindow{Start: now.Add(time.Hour), End: now.Add(48 * time.Hour)},
		Package:     domain.Package{WeightKg: 10, VolumeM3: 0.5, Category: "medium"},
		Price:       30,
		Currency:    "EUR",
		Status:      domain.AnnouncementOpen,
		CreatedAt:   now,
	}
	if err := env.announcements.Create(context.Background(), a); err != nil {
		t.Fatalf("seed announcement: %v", err)
	}
	return a
}

// seedRoute creates a carrier1 route covering the seeded announcement.
func seedRoute(t *testing.T, env *testEnv) *domain.Route {
	t.Helper()
	now := time.Now().UTC()
	r := &domain.Route{
		CarrierID:         "carrier1",
		Origin:            parisAddress(),
		Destination:       lyonAddress(),
		DepartureAt:       now.Add(2 * time.Hour),
		ArrivalAt:         now.Add(6 * time.Hour),
		DeclaredWeightKg:  100,
		RemainingWeightKg: 100,
		DeclaredVolumeM3:  2,
		RemainingVolumeM3: 2,
		PricePerKg:        2,
		Currency:          "EUR",
		CreatedAt:         now,
	}
	if err := env.routes.Create(context.Background(), r); err != nil {
		t.Fatalf("seed route: %v", err)
	}
	return r
}

// seedAcceptedDelivery runs propose plus accept and returns the delivery.
func seedAcceptedDelivery(t *testing.T, env *testEnv) *domain.Delivery {
	t.Helper()
	ctx := context.Background()
	a := seedAnnouncement(t, env)
	seedRoute(t, env)
	proposals, err := env.matching.ProposeForAnnouncement(ctx, a.ID)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(proposals) == 0 {
		t.Fatal("expected at least one proposal")
	}
	d, err := env.matching.AcceptMatch(ctx, ports.AcceptMatchInput{MatchID: proposals[0].MatchID, ActorID: "carrier1"})
	if err != nil {
		t.Fatalf("accept match: %v", err)
	}
	return d
}
