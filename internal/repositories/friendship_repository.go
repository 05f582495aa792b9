package repositories

import (
	"context"

	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ErrStaleState is returned when a conditional update matched no row because
// the row changed since it was read.
var ErrStaleState = errors.New("row is no longer in the expected state")

// FriendshipRepository defines the data operations behind the friend lifecycle.
//
// Lookups return gorm.ErrRecordNotFound unwrapped so callers can classify it.
type FriendshipRepository interface {
	WithTx(tx *gorm.DB) FriendshipRepository

	LockUsers(ctx context.Context, ids ...uint) ([]models.User, error)

	CreateRequest(ctx context.Context, req *models.FriendRequest) error
	GetRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error)
	GetRequestByPair(ctx context.Context, fromUserID, toUserID uint) (*models.FriendRequest, error)
	GetLatestRequestBetween(ctx context.Context, userA, userB uint) (*models.FriendRequest, error)
	TransitionRequest(ctx context.Context, req *models.FriendRequest, to models.RequestStatus) error
	ListIncomingPending(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	ListOutgoingPending(ctx context.Context, userID uint) ([]models.FriendRequest, error)

	CreateFriendship(ctx context.Context, userA, userB uint) error
	DeleteFriendship(ctx context.Context, userA, userB uint) (int64, error)
	AreFriends(ctx context.Context, userA, userB uint) (bool, error)
	ListFriendships(ctx context.Context, userID uint) ([]models.Friendship, error)
}

// PostgresFriendshipRepository implements FriendshipRepository on any gorm dialect
type PostgresFriendshipRepository struct {
	db *gorm.DB
}

// NewPostgresFriendshipRepository creates a new PostgresFriendshipRepository
func NewPostgresFriendshipRepository(db *gorm.DB) *PostgresFriendshipRepository {
	return &PostgresFriendshipRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *PostgresFriendshipRepository) WithTx(tx *gorm.DB) FriendshipRepository {
	return &PostgresFriendshipRepository{db: tx}
}

// LockUsers row-locks the given users in id order so that concurrent
// operations on the same pair serialize. Missing users are simply not returned.
func (r *PostgresFriendshipRepository) LockUsers(ctx context.Context, ids ...uint) ([]models.User, error) {
	var users []models.User
	err := forUpdate(r.db.WithContext(ctx)).Where("id IN ?", ids).Order("id ASC").Find(&users).Error
	return users, errors.Wrap(err, "lock users")
}

func (r *PostgresFriendshipRepository) CreateRequest(ctx context.Context, req *models.FriendRequest) error {
	err := r.db.WithContext(ctx).Create(req).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	return errors.Wrap(err, "create friend request")
}

func (r *PostgresFriendshipRepository) GetRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// GetRequestByPair retrieves the request for the ordered (from, to) pair
func (r *PostgresFriendshipRepository) GetRequestByPair(ctx context.Context, fromUserID, toUserID uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("from_user_id = ? AND to_user_id = ?", fromUserID, toUserID).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetLatestRequestBetween returns the most recently updated request in either direction
func (r *PostgresFriendshipRepository) GetLatestRequestBetween(ctx context.Context, userA, userB uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)", userA, userB, userB, userA).
		Order("updated_at DESC").Order("id DESC").
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// TransitionRequest moves a pending request to a terminal status. The update is
// conditional on the row still being pending; otherwise ErrStaleState is returned.
func (r *PostgresFriendshipRepository) TransitionRequest(ctx context.Context, req *models.FriendRequest, to models.RequestStatus) error {
	res := r.db.WithContext(ctx).Model(req).
		Where("status = ?", models.RequestPending).
		Update("status", to)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update friend request status")
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	req.Status = to
	return nil
}

func (r *PostgresFriendshipRepository) ListIncomingPending(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	requests := []models.FriendRequest{}
	err := r.db.WithContext(ctx).
		Where("to_user_id = ? AND status = ?", userID, models.RequestPending).
		Order("created_at DESC").Order("id DESC").
		Find(&requests).Error
	return requests, errors.Wrap(err, "list incoming requests")
}

func (r *PostgresFriendshipRepository) ListOutgoingPending(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	requests := []models.FriendRequest{}
	err := r.db.WithContext(ctx).
		Where("from_user_id = ? AND status = ?", userID, models.RequestPending).
		Order("created_at DESC").Order("id DESC").
		Find(&requests).Error
	return requests, errors.Wrap(err, "list outgoing requests")
}

// CreateFriendship inserts both directional rows in one statement
func (r *PostgresFriendshipRepository) CreateFriendship(ctx context.Context, userA, userB uint) error {
	rows := []models.Friendship{
		{UserID: userA, FriendID: userB},
		{UserID: userB, FriendID: userA},
	}
	err := r.db.WithContext(ctx).Create(&rows).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	return errors.Wrap(err, "create friendship")
}

// DeleteFriendship removes both directional rows and reports how many were deleted
func (r *PostgresFriendshipRepository) DeleteFriendship(ctx context.Context, userA, userB uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", userA, userB, userB, userA).
		Delete(&models.Friendship{})
	return res.RowsAffected, errors.Wrap(res.Error, "delete friendship")
}

func (r *PostgresFriendshipRepository) AreFriends(ctx context.Context, userA, userB uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("user_id = ? AND friend_id = ?", userA, userB).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "check friendship")
	}
	return count > 0, nil
}

// ListFriendships retrieves the owner's friendship rows, newest first
func (r *PostgresFriendshipRepository) ListFriendships(ctx context.Context, userID uint) ([]models.Friendship, error) {
	rows := []models.Friendship{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	return rows, errors.Wrap(err, "list friendships")
}
