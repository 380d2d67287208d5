package service

import (
	"slices"
	"sync"
	"time"

	"babyofficehours/internal/models"

	"github.com/google/uuid"
)

// DefaultInviteExpiry is applied to invites created without an explicit expiry
const DefaultInviteExpiry = 7 * 24 * time.Hour

type inviteConfig struct {
	expiresIn time.Duration
	noExpiry  bool
}

// InviteOption customizes invite creation
type InviteOption func(*inviteConfig)

// WithExpiresIn makes the invite expire d after creation
func WithExpiresIn(d time.Duration) InviteOption {
	return func(c *inviteConfig) {
		c.expiresIn = d
		c.noExpiry = false
	}
}

// WithoutExpiry creates an invite that never expires
func WithoutExpiry() InviteOption {
	return func(c *inviteConfig) {
		c.noExpiry = true
	}
}

// AppStateOption configures an AppState
type AppStateOption func(*AppState)

// WithClock replaces the wall clock, mainly for tests
func WithClock(now func() time.Time) AppStateOption {
	return func(s *AppState) {
		s.now = now
	}
}

// Redemption is the outcome of redeeming an invite locally
type Redemption struct {
	Baby   models.Baby
	Invite models.Invite
}

// AppState owns the current user and every known baby and invite for a
// session. All access goes through one mutex; values handed out are copies.
type AppState struct {
	mu sync.Mutex

	now         func() time.Time
	currentUser *models.User
	knownUsers  map[uuid.UUID]*models.User

	babies      map[uuid.UUID]*models.Baby
	babyOrder   []uuid.UUID
	invites     map[uuid.UUID]*models.Invite
	inviteOrder []uuid.UUID

	onboarded   bool
	pendingJoin *models.Invite
}

// NewAppState creates a coordinator for the given user
func NewAppState(user *models.User, opts ...AppStateOption) *AppState {
	if user == nil {
		user = models.NewUser()
	}
	s := &AppState{
		now:         time.Now,
		currentUser: user.Clone(),
		knownUsers:  make(map[uuid.UUID]*models.User),
		babies:      make(map[uuid.UUID]*models.Baby),
		invites:     make(map[uuid.UUID]*models.Invite),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentUser returns a copy of the active user
func (s *AppState) CurrentUser() models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.currentUser.Clone()
}

// SetCurrentUser switches the active user. The previous user stays in the
// known users registry so names keep resolving.
func (s *AppState) SetCurrentUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knownUsers[s.currentUser.ID] = s.currentUser
	s.currentUser = u.Clone()
	delete(s.knownUsers, u.ID)
}

// SetUserName changes the display name of the active user
func (s *AppState) SetUserName(name string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUser.SetName(name)
	return *s.currentUser.Clone()
}

// SetUserDeviceToken records the push token of the active user
func (s *AppState) SetUserDeviceToken(token string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUser.SetDeviceToken(token)
	return *s.currentUser.Clone()
}

// MergeCurrentUser adopts stored profile fields for the active user. Local
// name and device token win when set; baby memberships are unioned.
func (s *AppState) MergeCurrentUser(stored models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored.ID != s.currentUser.ID {
		return *s.currentUser.Clone()
	}
	if s.currentUser.Name == nil && stored.Name != nil {
		s.currentUser.SetName(*stored.Name)
	}
	if s.currentUser.DeviceToken == nil && stored.DeviceToken != nil {
		s.currentUser.SetDeviceToken(*stored.DeviceToken)
	}
	for _, id := range stored.Babies {
		s.currentUser.AddBaby(id)
	}
	return *s.currentUser.Clone()
}

// User returns a known user, including the active one
func (s *AppState) User(id uuid.UUID) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.currentUser.ID {
		return *s.currentUser.Clone(), true
	}
	u, ok := s.knownUsers[id]
	if !ok {
		return models.User{}, false
	}
	return *u.Clone(), true
}

// RegisterUser adds a user to the known users registry
func (s *AppState) RegisterUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == s.currentUser.ID {
		return
	}
	s.knownUsers[u.ID] = u.Clone()
}

// DisplayName returns "You" for the active user, the registered name for
// known users, and "Unknown" otherwise.
func (s *AppState) DisplayName(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.currentUser.ID {
		return "You"
	}
	if u, ok := s.knownUsers[id]; ok {
		return u.DisplayName()
	}
	return "Unknown"
}

func (s *AppState) HasCompletedOnboarding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onboarded
}

// SetPendingJoinInvite remembers an invite opened from a link until the
// user finishes joining.
func (s *AppState) SetPendingJoinInvite(inv *models.Invite) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv == nil {
		s.pendingJoin = nil
		return
	}
	s.pendingJoin = inv.Clone()
}

func (s *AppState) PendingJoinInvite() *models.Invite {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingJoin == nil {
		return nil
	}
	return s.pendingJoin.Clone()
}

// Baby management

// CreateBaby creates a baby with the active user as creator and sole parent
func (s *AppState) CreateBaby(name string) models.Baby {
	s.mu.Lock()
	defer s.mu.Unlock()

	baby := models.NewBaby(name, s.currentUser.ID, s.now())
	s.putBaby(baby)
	s.currentUser.AddBaby(baby.ID)
	s.onboarded = true
	return *baby.Clone()
}

// Baby returns a copy of a known baby
func (s *AppState) Baby(id uuid.UUID) (models.Baby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.babies[id]
	if !ok {
		return models.Baby{}, false
	}
	return *b.Clone(), true
}

// Babies returns every known baby in the order it became known
func (s *AppState) Babies() []models.Baby {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterBabies(func(*models.Baby) bool { return true })
}

// ParentBabies returns babies where the active user is a parent
func (s *AppState) ParentBabies() []models.Baby {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := s.currentUser.ID
	return s.filterBabies(func(b *models.Baby) bool { return b.IsParent(uid) })
}

// SubscribedBabies returns babies where the active user is a subscriber
func (s *AppState) SubscribedBabies() []models.Baby {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := s.currentUser.ID
	return s.filterBabies(func(b *models.Baby) bool { return b.IsSubscriber(uid) })
}

// IsParent reports whether the active user is a parent of the baby
func (s *AppState) IsParent(babyID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.babies[babyID]
	return ok && b.IsParent(s.currentUser.ID)
}

// IsCreator reports whether the active user created the baby
func (s *AppState) IsCreator(babyID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.babies[babyID]
	return ok && b.IsCreator(s.currentUser.ID)
}

// ToggleAvailability flips availability. Returns nil unless the active user is a parent.
func (s *AppState) ToggleAvailability(babyID uuid.UUID) *models.Baby {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.parentOf(babyID)
	if b == nil {
		return nil
	}
	b.ToggleAvailability(s.now())
	return b.Clone()
}

// SetAvailability sets availability. Returns nil unless the active user is a parent.
func (s *AppState) SetAvailability(babyID uuid.UUID, available bool) *models.Baby {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.parentOf(babyID)
	if b == nil {
		return nil
	}
	b.SetAvailability(available, s.now())
	return b.Clone()
}

// RenameBaby changes the baby's name. Parents only.
func (s *AppState) RenameBaby(babyID uuid.UUID, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.parentOf(babyID)
	if b == nil {
		return false
	}
	b.Rename(name)
	return true
}

// DeleteBaby forgets a baby together with its invites. Only the creator may delete.
func (s *AppState) DeleteBaby(babyID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.babies[babyID]
	if !ok || !b.IsCreator(s.currentUser.ID) {
		return false
	}
	s.evictBaby(babyID)
	for _, id := range slices.Clone(s.inviteOrder) {
		if s.invites[id].BabyID == babyID {
			s.dropInvite(id)
		}
	}
	return true
}

// Invite management

// CreateCoParentInvite creates a parent invite. Returns nil unless the
// active user is a parent of a known baby.
func (s *AppState) CreateCoParentInvite(babyID uuid.UUID, opts ...InviteOption) *models.Invite {
	return s.createInvite(babyID, models.RoleParent, opts)
}

// CreateSubscriberInvite creates a subscriber invite. Returns nil unless
// the active user is a parent of a known baby.
func (s *AppState) CreateSubscriberInvite(babyID uuid.UUID, opts ...InviteOption) *models.Invite {
	return s.createInvite(babyID, models.RoleSubscriber, opts)
}

func (s *AppState) createInvite(babyID uuid.UUID, role models.Role, opts []InviteOption) *models.Invite {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.parentOf(babyID) == nil {
		return nil
	}

	cfg := inviteConfig{expiresIn: DefaultInviteExpiry}
	for _, opt := range opts {
		opt(&cfg)
	}

	now := s.now()
	var expiresAt *time.Time
	if !cfg.noExpiry {
		t := now.Add(cfg.expiresIn)
		expiresAt = &t
	}

	invite := models.NewInvite(babyID, role, s.currentUser.ID, now, expiresAt)
	s.putInvite(invite)
	return invite.Clone()
}

// TrackInvite records an invite fetched from the store
func (s *AppState) TrackInvite(inv models.Invite) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putInvite(inv.Clone())
}

// PendingInvitesFor returns the still valid invites for a baby
func (s *AppState) PendingInvitesFor(babyID uuid.UUID) []models.Invite {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	return s.filterInvites(func(i *models.Invite) bool {
		return i.BabyID == babyID && i.IsValid(now)
	})
}

// PendingInvites returns every tracked invite that has not been redeemed
func (s *AppState) PendingInvites() []models.Invite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterInvites(func(i *models.Invite) bool { return !i.IsRedeemed })
}

// Invite returns a tracked invite
func (s *AppState) Invite(id uuid.UUID) (models.Invite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[id]
	if !ok {
		return models.Invite{}, false
	}
	return *inv.Clone(), true
}

// RedeemInvite redeems an invite for the active user and grants the
// invite's role on its baby. Returns nil if the invite is not valid or the
// baby is not known locally.
func (s *AppState) RedeemInvite(inv models.Invite) *Redemption {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	invite, ok := s.invites[inv.ID]
	if !ok {
		invite = inv.Clone()
	}
	if !invite.IsValid(now) {
		return nil
	}
	baby, ok := s.babies[invite.BabyID]
	if !ok {
		return nil
	}

	uid := s.currentUser.ID
	invite.Redeem(uid, now)
	s.putInvite(invite)
	s.grantRole(baby, invite.Role, uid)
	s.currentUser.AddBaby(baby.ID)

	return &Redemption{Baby: *baby.Clone(), Invite: *invite.Clone()}
}

// CancelInvite removes a pending invite. Returns false if it is not pending.
func (s *AppState) CancelInvite(inviteID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[inviteID]
	if !ok || inv.IsRedeemed {
		return false
	}
	s.dropInvite(inviteID)
	return true
}

// Membership management

// RemoveCoParent removes a parent other than the creator. The active user must be a parent.
func (s *AppState) RemoveCoParent(userID, babyID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.parentOf(babyID)
	if b == nil {
		return false
	}
	return b.RemoveParent(userID)
}

// RemoveSubscriber removes a subscriber. The active user must be a parent.
func (s *AppState) RemoveSubscriber(userID, babyID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.parentOf(babyID)
	if b == nil {
		return false
	}
	return b.RemoveSubscriber(userID)
}

// JoinBaby completes the join flow: names the active user, grants the
// role, records the baby and finishes onboarding.
func (s *AppState) JoinBaby(baby models.Baby, role models.Role, userName string) models.Baby {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentUser.SetName(userName)

	b, ok := s.babies[baby.ID]
	if !ok {
		b = baby.Clone()
		s.putBaby(b)
	}
	s.grantRole(b, role, s.currentUser.ID)
	s.currentUser.AddBaby(b.ID)

	s.onboarded = true
	s.pendingJoin = nil
	return *b.Clone()
}

// Merge hooks for data arriving from the store

// UpsertBaby replaces a known baby or appends a new one
func (s *AppState) UpsertBaby(b models.Baby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putBaby(b.Clone())
}

// ReplaceBabies swaps the whole set of known babies
func (s *AppState) ReplaceBabies(babies []models.Baby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.babies = make(map[uuid.UUID]*models.Baby, len(babies))
	s.babyOrder = nil
	for i := range babies {
		s.putBaby(babies[i].Clone())
	}
	if len(s.babyOrder) > 0 {
		s.onboarded = true
	}
}

// MergeBaby adopts a baby written to the store. A baby the active user no
// longer belongs to is evicted. Reports whether the baby is still known.
func (s *AppState) MergeBaby(b models.Baby) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeBaby(&b)
}

// ApplyBabyEvent merges a realtime update. A removal, or an update that no
// longer lists the active user, evicts the baby. Reports whether the baby is
// still known.
func (s *AppState) ApplyBabyEvent(ev models.BabyEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Removed() {
		s.evictBaby(ev.BabyID)
		return false
	}
	return s.mergeBaby(ev.Baby)
}

// RestoreAvailability overwrites availability and its change time on a
// known baby, leaving membership untouched.
func (s *AppState) RestoreAvailability(babyID uuid.UUID, available bool, changedAt time.Time) (models.Baby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.babies[babyID]
	if !ok {
		return models.Baby{}, false
	}
	b.IsAvailable = available
	b.LastStatusChange = changedAt
	return *b.Clone(), true
}

func (s *AppState) mergeBaby(b *models.Baby) bool {
	if !b.IsMember(s.currentUser.ID) {
		s.evictBaby(b.ID)
		return false
	}
	s.putBaby(b.Clone())
	return true
}

func (s *AppState) putBaby(b *models.Baby) {
	if _, ok := s.babies[b.ID]; !ok {
		s.babyOrder = append(s.babyOrder, b.ID)
	}
	s.babies[b.ID] = b
}

func (s *AppState) evictBaby(id uuid.UUID) {
	s.currentUser.RemoveBaby(id)
	if _, ok := s.babies[id]; !ok {
		return
	}
	delete(s.babies, id)
	s.babyOrder = slices.DeleteFunc(s.babyOrder, func(x uuid.UUID) bool { return x == id })
}

func (s *AppState) putInvite(inv *models.Invite) {
	if _, ok := s.invites[inv.ID]; !ok {
		s.inviteOrder = append(s.inviteOrder, inv.ID)
	}
	s.invites[inv.ID] = inv
}

func (s *AppState) dropInvite(id uuid.UUID) {
	delete(s.invites, id)
	s.inviteOrder = slices.DeleteFunc(s.inviteOrder, func(x uuid.UUID) bool { return x == id })
}

// parentOf returns the canonical baby if the active user is one of its parents
func (s *AppState) parentOf(babyID uuid.UUID) *models.Baby {
	b, ok := s.babies[babyID]
	if !ok || !b.IsParent(s.currentUser.ID) {
		return nil
	}
	return b
}

func (s *AppState) grantRole(b *models.Baby, role models.Role, userID uuid.UUID) {
	switch role {
	case models.RoleParent:
		b.AddParent(userID)
	case models.RoleSubscriber:
		b.AddSubscriber(userID)
	}
}

func (s *AppState) filterBabies(keep func(*models.Baby) bool) []models.Baby {
	out := []models.Baby{}
	for _, id := range s.babyOrder {
		if b := s.babies[id]; keep(b) {
			out = append(out, *b.Clone())
		}
	}
	return out
}

func (s *AppState) filterInvites(keep func(*models.Invite) bool) []models.Invite {
	out := []models.Invite{}
	for _, id := range s.inviteOrder {
		if inv := s.invites[id]; keep(inv) {
			out = append(out, *inv.Clone())
		}
	}
	return out
}
