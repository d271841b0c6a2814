package services

import (
	"context"
	"mime/multipart"
	"strconv"
	"sync"
	"time"

	"github.com/memoria-app/memoria/internal/app/models"
	"github.com/memoria-app/memoria/internal/pkg/apperrors"
)

// Function-field fakes for the repository interfaces. Unset fields panic,
// which makes unexpected calls fail loudly in tests.

type fakeGroupRepo struct {
	createWithOwnerFn  func(ctx context.Context, group *models.Group) error
	getByIDFn          func(ctx context.Context, id int64) (*models.Group, error)
	updateFn           func(ctx context.Context, group *models.Group) error
	updateCoverImageFn func(ctx context.Context, groupID int64, imageURL string) error
	listByUserFn       func(ctx context.Context, userID int64) ([]*models.Group, error)
	listPublicFn       func(ctx context.Context, search *string, limit int) ([]*models.Group, error)
}

func (f *fakeGroupRepo) CreateWithOwner(ctx context.Context, group *models.Group) error {
	return f.createWithOwnerFn(ctx, group)
}

func (f *fakeGroupRepo) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeGroupRepo) Update(ctx context.Context, group *models.Group) error {
	return f.updateFn(ctx, group)
}

func (f *fakeGroupRepo) UpdateCoverImage(ctx context.Context, groupID int64, imageURL string) error {
	return f.updateCoverImageFn(ctx, groupID, imageURL)
}

func (f *fakeGroupRepo) ListByUser(ctx context.Context, userID int64) ([]*models.Group, error) {
	return f.listByUserFn(ctx, userID)
}

func (f *fakeGroupRepo) ListPublic(ctx context.Context, search *string, limit int) ([]*models.Group, error) {
	return f.listPublicFn(ctx, search, limit)
}

type fakeMembershipRepo struct {
	addFn               func(ctx context.Context, membership *models.Membership) error
	removeFn            func(ctx context.Context, groupID, userID int64) error
	getByGroupAndUserFn func(ctx context.Context, groupID, userID int64) (*models.Membership, error)
	isMemberFn          func(ctx context.Context, groupID, userID int64) (bool, error)
	listByGroupIDFn     func(ctx context.Context, groupID int64) ([]*models.Membership, error)
	countByGroupIDsFn   func(ctx context.Context, groupIDs []int64) (map[int64]int, error)
}

func (f *fakeMembershipRepo) Add(ctx context.Context, membership *models.Membership) error {
	return f.addFn(ctx, membership)
}

func (f *fakeMembershipRepo) Remove(ctx context.Context, groupID, userID int64) error {
	return f.removeFn(ctx, groupID, userID)
}

func (f *fakeMembershipRepo) GetByGroupAndUser(ctx context.Context, groupID, userID int64) (*models.Membership, error) {
	return f.getByGroupAndUserFn(ctx, groupID, userID)
}

func (f *fakeMembershipRepo) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	return f.isMemberFn(ctx, groupID, userID)
}

func (f *fakeMembershipRepo) ListByGroupID(ctx context.Context, groupID int64) ([]*models.Membership, error) {
	return f.listByGroupIDFn(ctx, groupID)
}

func (f *fakeMembershipRepo) CountByGroupIDs(ctx context.Context, groupIDs []int64) (map[int64]int, error) {
	if f.countByGroupIDsFn == nil {
		return map[int64]int{}, nil
	}
	return f.countByGroupIDsFn(ctx, groupIDs)
}

type fakeProfileRepo struct {
	upsertFn         func(ctx context.Context, profile *models.Profile) error
	getByUserIDFn    func(ctx context.Context, userID int64) (*models.Profile, error)
	getByUserIDsFn   func(ctx context.Context, userIDs []int64) (map[int64]*models.Profile, error)
	usernameExistsFn func(ctx context.Context, username string) (bool, error)
	updateFn         func(ctx context.Context, profile *models.Profile) error
}

func (f *fakeProfileRepo) Upsert(ctx context.Context, profile *models.Profile) error {
	return f.upsertFn(ctx, profile)
}

func (f *fakeProfileRepo) GetByUserID(ctx context.Context, userID int64) (*models.Profile, error) {
	if f.getByUserIDFn == nil {
		return nil, apperrors.ErrResourceNotFound
	}
	return f.getByUserIDFn(ctx, userID)
}

func (f *fakeProfileRepo) GetByUserIDs(ctx context.Context, userIDs []int64) (map[int64]*models.Profile, error) {
	if f.getByUserIDsFn == nil {
		return map[int64]*models.Profile{}, nil
	}
	return f.getByUserIDsFn(ctx, userIDs)
}

func (f *fakeProfileRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	return f.usernameExistsFn(ctx, username)
}

func (f *fakeProfileRepo) Update(ctx context.Context, profile *models.Profile) error {
	return f.updateFn(ctx, profile)
}

type fakeMemoryRepo struct {
	insertBatchFn   func(ctx context.Context, memories []*models.Memory) error
	getByIDFn       func(ctx context.Context, id int64) (*models.Memory, error)
	listByGroupIDFn func(ctx context.Context, groupID int64, limit int) ([]*models.Memory, error)
	deleteFn        func(ctx context.Context, id int64) error
}

func (f *fakeMemoryRepo) InsertBatch(ctx context.Context, memories []*models.Memory) error {
	return f.insertBatchFn(ctx, memories)
}

func (f *fakeMemoryRepo) GetByID(ctx context.Context, id int64) (*models.Memory, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeMemoryRepo) ListByGroupID(ctx context.Context, groupID int64, limit int) ([]*models.Memory, error) {
	return f.listByGroupIDFn(ctx, groupID, limit)
}

func (f *fakeMemoryRepo) Delete(ctx context.Context, id int64) error {
	return f.deleteFn(ctx, id)
}

type fakeUserRepo struct {
	createUserFn       func(ctx context.Context, user *models.User) (int64, error)
	getUserByIDFn      func(ctx context.Context, id int64) (*models.User, error)
	getUserByEmailFn   func(ctx context.Context, email string) (*models.User, error)
	emailExistsFn      func(ctx context.Context, email string) (bool, error)
	updateLastLoginFn  func(ctx context.Context, userID int64) error
	setEmailVerifiedFn func(ctx context.Context, userID int64) error
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	return f.createUserFn(ctx, user)
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return f.getUserByIDFn(ctx, id)
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.getUserByEmailFn(ctx, email)
}

func (f *fakeUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return f.emailExistsFn(ctx, email)
}

func (f *fakeUserRepo) UpdateLastLogin(ctx context.Context, userID int64) error {
	if f.updateLastLoginFn == nil {
		return nil
	}
	return f.updateLastLoginFn(ctx, userID)
}

func (f *fakeUserRepo) SetEmailVerified(ctx context.Context, userID int64) error {
	return f.setEmailVerifiedFn(ctx, userID)
}

type fakeTokenRepo struct {
	mu      sync.Mutex
	created []string
	revoked []string

	getTokenByValueFn func(ctx context.Context, token string) (int64, time.Time, bool, error)
}

func (f *fakeTokenRepo) CreateToken(ctx context.Context, token string, userID int64, expiryDate time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, token)
	return nil
}

func (f *fakeTokenRepo) GetTokenByValue(ctx context.Context, token string) (int64, time.Time, bool, error) {
	if f.getTokenByValueFn == nil {
		return 0, time.Time{}, false, apperrors.ErrTokenNotFound
	}
	return f.getTokenByValueFn(ctx, token)
}

func (f *fakeTokenRepo) RevokeToken(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, token)
	return nil
}

func (f *fakeTokenRepo) RevokeAllUserTokens(ctx context.Context, userID int64) error {
	return nil
}

func (f *fakeTokenRepo) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return 0, nil
}

type fakeVerificationRepo struct {
	mu      sync.Mutex
	tokens  map[string]int64
	deleted []string

	getTokenInfoFn func(ctx context.Context, token string) (int64, time.Time, error)
}

func (f *fakeVerificationRepo) CreateToken(ctx context.Context, userID int64, token string, expiryDate time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokens == nil {
		f.tokens = map[string]int64{}
	}
	f.tokens[token] = userID
	return nil
}

func (f *fakeVerificationRepo) GetTokenInfo(ctx context.Context, token string) (int64, time.Time, error) {
	if f.getTokenInfoFn == nil {
		return 0, time.Time{}, apperrors.ErrInvalidEmailToken
	}
	return f.getTokenInfoFn(ctx, token)
}

func (f *fakeVerificationRepo) DeleteToken(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, token)
	return nil
}

func (f *fakeVerificationRepo) DeleteTokensByUserID(ctx context.Context, userID int64) error {
	return nil
}

func (f *fakeVerificationRepo) DeleteExpiredTokens(ctx context.Context) error {
	return nil
}

// fakeStorage returns deterministic URLs without touching the filesystem.
type fakeStorage struct {
	mu      sync.Mutex
	saves   int
	deleted []string
	saveErr error
}

func (f *fakeStorage) Save(bucket, subPath string, fileHeader *multipart.FileHeader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saves++
	return "http://localhost:8080/uploads/" + bucket + "/" + subPath + "/file-" + strconv.Itoa(f.saves) + ".jpg", nil
}

func (f *fakeStorage) Delete(fileURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, fileURL)
	return nil
}

type publishedEvent struct {
	eventType string
	groupID   int64
	actorID   int64
}

type fakePublisher struct {
	events []publishedEvent
}

func (f *fakePublisher) Publish(eventType string, groupID, actorID int64) {
	f.events = append(f.events, publishedEvent{eventType: eventType, groupID: groupID, actorID: actorID})
}

type fakeEmailService struct {
	verificationsSent int
	welcomesSent      int
	sendErr           error
}

func (f *fakeEmailService) SendVerificationEmail(toEmail, toName, token string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.verificationsSent++
	return nil
}

func (f *fakeEmailService) SendWelcomeEmail(toEmail, toName string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.welcomesSent++
	return nil
}
