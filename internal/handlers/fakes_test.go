package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/safetrade/marketplace/backend/internal/geo"
	"github.com/safetrade/marketplace/backend/internal/models"
	"github.com/safetrade/marketplace/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
)

// In-memory repositories for handler tests.

type fakeUsers struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*models.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[uint]*models.User{}} }

func (f *fakeUsers) CreateUser(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return gorm.ErrDuplicatedKey
		}
	}
	f.nextID++
	u.ID = f.nextID
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	u.CreatedAt = time.Now()
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) GetUserByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.FirebaseUID != nil && *u.FirebaseUID == uid {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) GetUsersByIDs(_ context.Context, ids []uint) (map[uint]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uint]models.User{}
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			out[id] = *u
		}
	}
	return out, nil
}

func (f *fakeUsers) UpdateUser(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[u.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) DeleteUser(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeUsers) SetPhoneVerified(_ context.Context, id uint, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Phone = phone
	u.PhoneVerified = true
	return nil
}

type fakeListings struct {
	mu          sync.Mutex
	nextID      uint
	nextImageID uint
	byID        map[uint]*models.Listing
}

func newFakeListings() *fakeListings { return &fakeListings{byID: map[uint]*models.Listing{}} }

func (f *fakeListings) CreateListing(_ context.Context, l *models.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	l.ID = f.nextID
	l.CreatedAt = time.Now()
	for i := range l.Images {
		f.nextImageID++
		l.Images[i].ID = f.nextImageID
		l.Images[i].ListingID = l.ID
	}
	cp := *l
	cp.Images = append([]models.ListingImage(nil), l.Images...)
	f.byID[l.ID] = &cp
	return nil
}

func (f *fakeListings) GetListingByID(_ context.Context, id uint) (*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	cp.Images = append([]models.ListingImage(nil), l.Images...)
	return &cp, nil
}

func (f *fakeListings) ListListings(_ context.Context, filter models.ListingFilter, page, limit int) ([]models.Listing, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []models.Listing
	for _, l := range f.byID {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.SellerID != 0 && l.SellerID != filter.SellerID {
			continue
		}
		if filter.Make != "" && !strings.EqualFold(l.Make, filter.Make) {
			continue
		}
		if filter.MinPrice > 0 && l.PriceCents < filter.MinPrice {
			continue
		}
		if filter.MaxPrice > 0 && l.PriceCents > filter.MaxPrice {
			continue
		}
		matched = append(matched, *l)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := int64(len(matched))
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (f *fakeListings) UpdateListing(_ context.Context, l *models.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.byID[l.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *l
	cp.Images = existing.Images
	f.byID[l.ID] = &cp
	return nil
}

func (f *fakeListings) SetListingStatus(_ context.Context, id uint, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	l.Status = status
	return nil
}

func (f *fakeListings) DeleteListing(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeListings) CountActiveBySeller(_ context.Context, sellerID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, l := range f.byID {
		if l.SellerID == sellerID && l.Status == models.ListingStatusActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeListings) GetListingsByIDs(_ context.Context, ids []uint) (map[uint]models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uint]models.Listing{}
	for _, id := range ids {
		if l, ok := f.byID[id]; ok {
			out[id] = *l
		}
	}
	return out, nil
}

func (f *fakeListings) AddImage(_ context.Context, img *models.ListingImage, limit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[img.ListingID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if len(l.Images) >= limit {
		return repositories.ErrImageLimit
	}
	img.Position = len(l.Images)
	f.nextImageID++
	img.ID = f.nextImageID
	l.Images = append(l.Images, *img)
	return nil
}

func (f *fakeListings) DeleteImage(_ context.Context, listingID, imageID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[listingID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i, img := range l.Images {
		if img.ID == imageID {
			l.Images = append(l.Images[:i], l.Images[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeFavorites struct {
	mu       sync.Mutex
	listings *fakeListings
	set      map[[2]uint]bool
}

func (f *fakeFavorites) AddFavorite(_ context.Context, userID, listingID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set[[2]uint{userID, listingID}] = true
	return nil
}

func (f *fakeFavorites) RemoveFavorite(_ context.Context, userID, listingID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.set, [2]uint{userID, listingID})
	return nil
}

func (f *fakeFavorites) ListFavoriteListings(ctx context.Context, userID uint) ([]models.Listing, error) {
	f.mu.Lock()
	var ids []uint
	for k := range f.set {
		if k[0] == userID {
			ids = append(ids, k[1])
		}
	}
	f.mu.Unlock()
	byID, _ := f.listings.GetListingsByIDs(ctx, ids)
	out := make([]models.Listing, 0, len(byID))
	for _, l := range byID {
		out = append(out, l)
	}
	return out, nil
}

type fakeConversations struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*models.Conversation
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{byID: map[uint]*models.Conversation{}}
}

func (f *fakeConversations) FindOrCreate(_ context.Context, listingID, buyerID, sellerID uint) (*models.Conversation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if c.ListingID == listingID && c.BuyerID == buyerID && c.SellerID == sellerID {
			cp := *c
			return &cp, false, nil
		}
	}
	f.nextID++
	c := &models.Conversation{ID: f.nextID, ListingID: listingID, BuyerID: buyerID, SellerID: sellerID, CreatedAt: time.Now()}
	f.byID[c.ID] = c
	cp := *c
	return &cp, true, nil
}

func (f *fakeConversations) GetConversationByID(_ context.Context, id uint) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConversations) ListForUser(_ context.Context, userID uint) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Conversation
	for _, c := range f.byID {
		if c.IsParticipant(userID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeConversations) TouchLastMessage(_ context.Context, id uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.LastMessageAt = &at
	return nil
}

type fakeMessages struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (f *fakeMessages) CreateMessage(_ context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = primitive.NewObjectID()
	f.msgs = append(f.msgs, *m)
	return nil
}

func (f *fakeMessages) ListMessages(_ context.Context, convID uint, before *primitive.ObjectID, limit int64) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.msgs {
		if m.ConversationID != convID {
			continue
		}
		if before != nil && m.ID.Hex() >= before.Hex() {
			continue
		}
		out = append(out, m)
	}
	if int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

func (f *fakeMessages) MarkRead(_ context.Context, convID, readerID uint, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.msgs {
		m := &f.msgs[i]
		if m.ConversationID == convID && m.SenderID != readerID && m.ReadAt == nil {
			m.ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) CountUnread(_ context.Context, ids []uint, readerID uint) (map[uint]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[uint]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[uint]int64{}
	for _, m := range f.msgs {
		if want[m.ConversationID] && m.SenderID != readerID && m.ReadAt == nil {
			out[m.ConversationID]++
		}
	}
	return out, nil
}

func (f *fakeMessages) EnsureIndexes(context.Context) error { return nil }

type fakeSafeZones struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*models.SafeZone
}

func newFakeSafeZones() *fakeSafeZones { return &fakeSafeZones{byID: map[uint]*models.SafeZone{}} }

func (f *fakeSafeZones) ListSafeZones(_ context.Context, city, kind string) ([]models.SafeZone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SafeZone
	for _, z := range f.byID {
		if !z.Active || (city != "" && !strings.EqualFold(z.City, city)) || (kind != "" && z.Kind != kind) {
			continue
		}
		out = append(out, *z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeSafeZones) GetSafeZoneByID(_ context.Context, id uint) (*models.SafeZone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	z, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *z
	return &cp, nil
}

func (f *fakeSafeZones) WithinBox(_ context.Context, lo, hi geo.Point) ([]models.SafeZone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SafeZone
	for _, z := range f.byID {
		if z.Active && z.Latitude >= lo.Lat && z.Latitude <= hi.Lat && z.Longitude >= lo.Lng && z.Longitude <= hi.Lng {
			out = append(out, *z)
		}
	}
	return out, nil
}

func (f *fakeSafeZones) CreateSafeZone(_ context.Context, z *models.SafeZone) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if strings.EqualFold(existing.Name, z.Name) && strings.EqualFold(existing.City, z.City) {
			return gorm.ErrDuplicatedKey
		}
	}
	f.nextID++
	z.ID = f.nextID
	cp := *z
	f.byID[z.ID] = &cp
	return nil
}

func (f *fakeSafeZones) UpsertSafeZones(ctx context.Context, zones []models.SafeZone) error {
	for i := range zones {
		if err := f.CreateSafeZone(ctx, &zones[i]); err != nil {
			return err
		}
	}
	return nil
}

type fakeMeetings struct {
	mu     sync.Mutex
	nextID uint
	zones  *fakeSafeZones
	byID   map[uint]*models.SafeZoneMeeting
}

func (f *fakeMeetings) withZone(m models.SafeZoneMeeting) *models.SafeZoneMeeting {
	if z, err := f.zones.GetSafeZoneByID(context.Background(), m.SafeZoneID); err == nil {
		m.SafeZone = z
	}
	return &m
}

func (f *fakeMeetings) CreateMeeting(_ context.Context, m *models.SafeZoneMeeting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m.ID = f.nextID
	m.CreatedAt = time.Now()
	cp := *m
	cp.SafeZone = nil
	f.byID[m.ID] = &cp
	return nil
}

func (f *fakeMeetings) GetMeetingByID(_ context.Context, id uint) (*models.SafeZoneMeeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return f.withZone(*m), nil
}

func (f *fakeMeetings) ListMeetingsForUser(_ context.Context, userID uint) ([]models.SafeZoneMeeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SafeZoneMeeting
	for _, m := range f.byID {
		if m.IsParticipant(userID) {
			out = append(out, *f.withZone(*m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeMeetings) LatestOpenForConversation(_ context.Context, convID uint) (*models.SafeZoneMeeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.SafeZoneMeeting
	for _, m := range f.byID {
		if m.ConversationID != convID {
			continue
		}
		if m.Status != models.MeetingStatusProposed && m.Status != models.MeetingStatusConfirmed {
			continue
		}
		if latest == nil || m.ID > latest.ID {
			latest = m
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.withZone(*latest), nil
}

func (f *fakeMeetings) UpdateMeeting(_ context.Context, id uint, fn func(*models.SafeZoneMeeting) error) (*models.SafeZoneMeeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m
	if err := fn(&cp); err != nil {
		return nil, err
	}
	f.byID[id] = &cp
	return f.withZone(cp), nil
}

type fakeDeals struct {
	mu     sync.Mutex
	byConv map[uint]*models.DealAgreement
}

func (f *fakeDeals) GetByConversation(_ context.Context, convID uint) (*models.DealAgreement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byConv[convID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDeals) Apply(_ context.Context, conv *models.Conversation, fn func(*models.DealAgreement) error) (*models.DealAgreement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byConv[conv.ID]
	if !ok {
		d = &models.DealAgreement{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			ListingID:      conv.ListingID,
			BuyerID:        conv.BuyerID,
			SellerID:       conv.SellerID,
		}
	}
	cp := *d
	if err := fn(&cp); err != nil {
		return nil, err
	}
	f.byConv[conv.ID] = &cp
	out := cp
	return &out, nil
}

type fakeVerifications struct {
	mu    sync.Mutex
	users *fakeUsers
	items []*models.IdentityVerification
}

func (f *fakeVerifications) CreateVerification(_ context.Context, v *models.IdentityVerification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v.ID = uuid.NewString()
	v.Status = models.VerificationPending
	v.CreatedAt = time.Now()
	cp := *v
	f.items = append(f.items, &cp)
	return nil
}

func (f *fakeVerifications) LatestForUser(_ context.Context, userID uint) (*models.IdentityVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].UserID == userID {
			cp := *f.items[i]
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeVerifications) HasPending(_ context.Context, userID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.items {
		if v.UserID == userID && v.Status == models.VerificationPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeVerifications) Review(ctx context.Context, id string, reviewerID uint, decision, reason string) (*models.IdentityVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.items {
		if v.ID != id {
			continue
		}
		if v.Status != models.VerificationPending {
			return nil, repositories.ErrAlreadyReviewed
		}
		now := time.Now()
		v.Status, v.Reason, v.ReviewerID, v.ReviewedAt = decision, reason, &reviewerID, &now
		if u, err := f.users.GetUserByID(ctx, v.UserID); err == nil {
			u.IdentityVerified = decision == models.VerificationApproved
			_ = f.users.UpdateUser(ctx, u)
		}
		cp := *v
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeVins struct {
	mu      sync.Mutex
	reports map[string]*models.StolenVehicleReport
	checks  []models.VinCheck
}

func (f *fakeVins) FindStolenReport(_ context.Context, vin string) (*models.StolenVehicleReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.reports[vin]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeVins) CreateStolenReport(_ context.Context, r *models.StolenVehicleReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reports[r.VIN]; ok {
		return gorm.ErrDuplicatedKey
	}
	r.ID = uint(len(f.reports) + 1)
	cp := *r
	f.reports[r.VIN] = &cp
	return nil
}

func (f *fakeVins) RecordCheck(_ context.Context, c *models.VinCheck) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, *c)
	return nil
}

type fakeNotifications struct {
	mu    sync.Mutex
	items []*models.Notification
}

func (f *fakeNotifications) CreateNotification(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = uint(len(f.items) + 1)
	n.CreatedAt = time.Now()
	cp := *n
	f.items = append(f.items, &cp)
	return nil
}

func (f *fakeNotifications) GetByRecipientID(_ context.Context, recipientID uint, page, limit int) ([]models.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].RecipientID == recipientID {
			out = append(out, *f.items[i])
		}
	}
	total := int64(len(out))
	start := (page - 1) * limit
	if start > len(out) {
		start = len(out)
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (f *fakeNotifications) GetUnreadCount(_ context.Context, recipientID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, item := range f.items {
		if item.RecipientID == recipientID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) MarkAsRead(_ context.Context, id, recipientID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.ID == id && item.RecipientID == recipientID {
			item.IsRead = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeNotifications) MarkAllAsRead(_ context.Context, recipientID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.RecipientID == recipientID {
			item.IsRead = true
		}
	}
	return nil
}

// ofType returns the notifications of type t sent to recipientID.
func (f *fakeNotifications) ofType(recipientID uint, t string) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, item := range f.items {
		if item.RecipientID == recipientID && item.Type == t {
			out = append(out, *item)
		}
	}
	return out
}
