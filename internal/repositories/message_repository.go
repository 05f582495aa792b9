package repositories

import (
	"context"

	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// CounterpartStat is one row of the per-counterpart conversation aggregate
type CounterpartStat struct {
	OtherID       uint
	Unread        int64
	LastMessageID uint
	LastMessage   *models.Message `gorm:"-"`
}

// MessageRepository defines the data operations behind message delivery
type MessageRepository interface {
	WithTx(tx *gorm.DB) MessageRepository
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, id uint) (*models.Message, error)
	ListBetween(ctx context.Context, userA, userB uint, limit int) ([]models.Message, error)
	CounterpartStats(ctx context.Context, ownerID uint) ([]CounterpartStat, error)
	MarkRead(ctx context.Context, id uint) error
	MarkAllReadFrom(ctx context.Context, ownerID, otherID uint) (int64, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
}

type postgresMessageRepository struct {
	db *gorm.DB
}

// NewPostgresMessageRepository creates a MessageRepository on any gorm dialect
func NewPostgresMessageRepository(db *gorm.DB) MessageRepository {
	return &postgresMessageRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *postgresMessageRepository) WithTx(tx *gorm.DB) MessageRepository {
	return &postgresMessageRepository{db: tx}
}

func (r *postgresMessageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(msg).Error, "create message")
}

func (r *postgresMessageRepository) GetMessageByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListBetween returns up to limit messages exchanged by the pair, newest first
func (r *postgresMessageRepository) ListBetween(ctx context.Context, userA, userB uint, limit int) ([]models.Message, error) {
	messages := []models.Message{}
	err := r.db.WithContext(ctx).
		Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)", userA, userB, userB, userA).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, errors.Wrap(err, "list messages")
}

// CounterpartStats lists every user the owner exchanged messages with, with
// the owner's unread count from them and the latest message either way.
// It runs two queries however many counterparts there are.
func (r *postgresMessageRepository) CounterpartStats(ctx context.Context, ownerID uint) ([]CounterpartStat, error) {
	stats := []CounterpartStat{}
	err := r.db.WithContext(ctx).Raw(`
		SELECT other_id, unread, id AS last_message_id
		FROM (
			SELECT id, other_id,
				ROW_NUMBER() OVER (PARTITION BY other_id ORDER BY created_at DESC, id DESC) AS rn,
				SUM(CASE WHEN to_user_id = ? AND read = ? THEN 1 ELSE 0 END) OVER (PARTITION BY other_id) AS unread
			FROM (
				SELECT id, created_at, to_user_id, read,
					CASE WHEN from_user_id = ? THEN to_user_id ELSE from_user_id END AS other_id
				FROM messages
				WHERE from_user_id = ? OR to_user_id = ?
			) convo
		) ranked
		WHERE rn = 1`,
		ownerID, false, ownerID, ownerID, ownerID,
	).Scan(&stats).Error
	if err != nil {
		return nil, errors.Wrap(err, "aggregate conversations")
	}
	if len(stats) == 0 {
		return stats, nil
	}

	ids := make([]uint, len(stats))
	for i, st := range stats {
		ids[i] = st.LastMessageID
	}
	var last []models.Message
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&last).Error; err != nil {
		return nil, errors.Wrap(err, "load last messages")
	}
	byID := make(map[uint]*models.Message, len(last))
	for i := range last {
		byID[last[i].ID] = &last[i]
	}
	for i := range stats {
		stats[i].LastMessage = byID[stats[i].LastMessageID]
	}
	return stats, nil
}

func (r *postgresMessageRepository) MarkRead(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND read = ?", id, false).
		Update("read", true).Error
	return errors.Wrap(err, "mark message read")
}

// MarkAllReadFrom flips every unread message from other to owner
func (r *postgresMessageRepository) MarkAllReadFrom(ctx context.Context, ownerID, otherID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("to_user_id = ? AND from_user_id = ? AND read = ?", ownerID, otherID, false).
		Update("read", true)
	return res.RowsAffected, errors.Wrap(res.Error, "mark conversation read")
}

func (r *postgresMessageRepository) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("to_user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, errors.Wrap(err, "count unread")
}
