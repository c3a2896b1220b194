package repository

import (
	"context"
	"time"

	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"gorm.io/gorm"
)

// messageMetaModel stores the delivery metadata the socket adapter needs to
// build protocol-correct quote references.
type messageMetaModel struct {
	ConnectionID uint      `gorm:"column:connection_id;primaryKey"`
	MessageID    string    `gorm:"column:message_id;primaryKey"`
	ChatJID      string    `gorm:"column:chat_jid;not null"`
	Sender       string    `gorm:"column:sender"`
	FromMe       bool      `gorm:"column:from_me;not null;default:false"`
	SentAt       time.Time `gorm:"column:sent_at;index"`
}

func (messageMetaModel) TableName() string {
	return "message_meta"
}

// MetaGormRepository implements message.MetaStore on gorm.
type MetaGormRepository struct {
	db *gorm.DB
}

func NewMetaGormRepository(db *gorm.DB) *MetaGormRepository {
	return &MetaGormRepository{db: db}
}

func (r *MetaGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&messageMetaModel{})
}

func (r *MetaGormRepository) Save(ctx context.Context, meta message.Meta) error {
	model := messageMetaModel{
		ConnectionID: meta.ConnectionID,
		MessageID:    meta.MessageID,
		ChatJID:      meta.ChatJID,
		Sender:       meta.Sender,
		FromMe:       meta.FromMe,
		SentAt:       meta.SentAt,
	}
	// upsert: the same id can be re-observed on resend
	return r.db.WithContext(ctx).Save(&model).Error
}

func (r *MetaGormRepository) Get(ctx context.Context, connectionID uint, messageID string) (message.Meta, bool) {
	var model messageMetaModel
	err := r.db.WithContext(ctx).
		First(&model, "connection_id = ? AND message_id = ?", connectionID, messageID).Error
	if err != nil {
		return message.Meta{}, false
	}
	return message.Meta{
		ConnectionID: model.ConnectionID,
		MessageID:    model.MessageID,
		ChatJID:      model.ChatJID,
		Sender:       model.Sender,
		FromMe:       model.FromMe,
		SentAt:       model.SentAt,
	}, true
}

func (r *MetaGormRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) error {
	return r.db.WithContext(ctx).
		Delete(&messageMetaModel{}, "sent_at < ?", cutoff).Error
}

var _ message.MetaStore = (*MetaGormRepository)(nil)
