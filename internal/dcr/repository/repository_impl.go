package repository

import (
	"context"
	"errors"

	"github.com/nimbusworks/tenantgate/internal/dcr/domain"
	"gorm.io/gorm"
)

type repositoryImpl struct{}

func New() domain.Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).Where("order_id = ?", orderID).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *repositoryImpl) Insert(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Create(client).Error
}
