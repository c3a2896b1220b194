package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"gorm.io/gorm"
)

// connectionModel is the persistence shape; the domain descriptor stays free
// of gorm tags.
type connectionModel struct {
	ID            uint   `gorm:"primaryKey"`
	Name          string `gorm:"not null"`
	ChannelType   string `gorm:"column:channel_type;not null;index"`
	Credentials   string `gorm:"column:credentials"` // JSON blob
	PhoneNumberID string `gorm:"column:phone_number_id"`
	BusinessID    string `gorm:"column:business_id"`
	PhoneNumber   string `gorm:"column:phone_number"`
	Status        string
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (connectionModel) TableName() string {
	return "connections"
}

// ConnectionGormRepository persists connection descriptors and receives the
// cloud-api provisioning write-back.
type ConnectionGormRepository struct {
	db *gorm.DB
}

func NewConnectionGormRepository(db *gorm.DB) *ConnectionGormRepository {
	return &ConnectionGormRepository{db: db}
}

func (r *ConnectionGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&connectionModel{})
}

func (r *ConnectionGormRepository) Create(ctx context.Context, desc channel.ConnectionDescriptor) (channel.ConnectionDescriptor, error) {
	model, err := toConnectionModel(desc)
	if err != nil {
		return channel.ConnectionDescriptor{}, err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return channel.ConnectionDescriptor{}, err
	}
	desc.ID = model.ID
	return desc, nil
}

func (r *ConnectionGormRepository) GetByID(ctx context.Context, id uint) (channel.ConnectionDescriptor, error) {
	var model connectionModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return channel.ConnectionDescriptor{}, apperror.New(apperror.CodeConfiguration, "connection not found")
		}
		return channel.ConnectionDescriptor{}, err
	}
	return fromConnectionModel(model)
}

func (r *ConnectionGormRepository) List(ctx context.Context) ([]channel.ConnectionDescriptor, error) {
	var models []connectionModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	result := make([]channel.ConnectionDescriptor, 0, len(models))
	for _, m := range models {
		desc, err := fromConnectionModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, desc)
	}
	return result, nil
}

func (r *ConnectionGormRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&connectionModel{}, "id = ?", id).Error
}

// UpdateProvisioning implements channel.ConnectionStore; the cloud-api
// adapter calls it after a successful initialize.
func (r *ConnectionGormRepository) UpdateProvisioning(id uint, info channel.ProvisioningInfo) error {
	return r.db.Model(&connectionModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"phone_number_id": info.PhoneNumberID,
		"business_id":     info.BusinessID,
		"phone_number":    info.PhoneNumber,
		"status":          string(info.Status),
	}).Error
}

func toConnectionModel(desc channel.ConnectionDescriptor) (connectionModel, error) {
	creds, err := json.Marshal(desc.Credentials)
	if err != nil {
		return connectionModel{}, err
	}
	return connectionModel{
		ID:          desc.ID,
		Name:        desc.Name,
		ChannelType: string(desc.Type),
		Credentials: string(creds),
	}, nil
}

func fromConnectionModel(m connectionModel) (channel.ConnectionDescriptor, error) {
	desc := channel.ConnectionDescriptor{
		ID:   m.ID,
		Name: m.Name,
		Type: channel.ChannelType(m.ChannelType),
	}
	if m.Credentials != "" {
		if err := json.Unmarshal([]byte(m.Credentials), &desc.Credentials); err != nil {
			return channel.ConnectionDescriptor{}, err
		}
	}
	return desc, nil
}

var _ channel.ConnectionStore = (*ConnectionGormRepository)(nil)
