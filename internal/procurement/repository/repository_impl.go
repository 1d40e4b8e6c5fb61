package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimbusworks/tenantgate/internal/procurement/domain"
	"gorm.io/gorm"
)

type repositoryImpl struct{}

func New() domain.Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) FindAccount(ctx context.Context, db *gorm.DB, accountID string) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repositoryImpl) InsertAccount(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Create(account).Error
}

func (r *repositoryImpl) AdvanceAccountState(ctx context.Context, db *gorm.DB, accountID string, from, to domain.AccountState) (bool, error) {
	tx := db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("account_id = ? AND state = ?", accountID, from).
		Updates(map[string]any{
			"state":      to,
			"updated_at": time.Now().UTC(),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *repositoryImpl) FindEntitlement(ctx context.Context, db *gorm.DB, orderID string) (*domain.Entitlement, error) {
	var entitlement domain.Entitlement
	err := db.WithContext(ctx).Where("order_id = ?", orderID).First(&entitlement).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrEntitlementNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entitlement, nil
}

func (r *repositoryImpl) InsertEntitlement(ctx context.Context, db *gorm.DB, entitlement *domain.Entitlement) error {
	return db.WithContext(ctx).Create(entitlement).Error
}

func (r *repositoryImpl) AdvanceEntitlementState(ctx context.Context, db *gorm.DB, orderID string, from, to domain.EntitlementState, reason string) (bool, error) {
	updates := map[string]any{
		"state":      to,
		"updated_at": time.Now().UTC(),
	}
	if reason != "" {
		updates["cancellation_reason"] = reason
	}

	tx := db.WithContext(ctx).
		Model(&domain.Entitlement{}).
		Where("order_id = ? AND state = ?", orderID, from).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
