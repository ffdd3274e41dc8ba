package mirror

import (
	"context"
	"errors"
	"fmt"

	"leadboard/internal/apperr"
	"leadboard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps mirror documents in the mirror_documents table (sqlite or postgres).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, path string) (Document, error) {
	var doc models.MirrorDocument
	err := s.db.WithContext(ctx).Where("path = ?", path).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	return Document{Body: []byte(doc.Body), Version: doc.Version, Exists: true}, nil
}

func (s *GormStore) Put(ctx context.Context, path string, body []byte) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc models.MirrorDocument
		err := tx.Where("path = ?", path).First(&doc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.MirrorDocument{Path: path, Body: string(body), Version: 1}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&models.MirrorDocument{}).
			Where("path = ?", path).
			Updates(map[string]interface{}{"body": string(body), "version": doc.Version + 1}).Error
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}

func (s *GormStore) CompareAndSwap(ctx context.Context, path string, version int64, body []byte) error {
	db := s.db.WithContext(ctx)

	if version == 0 {
		res := db.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.MirrorDocument{Path: path, Body: string(body), Version: 1})
		if res.Error != nil {
			return fmt.Errorf("create %s: %w", path, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("create %s: %w", path, apperr.ErrVersionConflict)
		}
		return nil
	}

	res := db.Model(&models.MirrorDocument{}).
		Where("path = ? AND version = ?", path, version).
		Updates(map[string]interface{}{"body": string(body), "version": gorm.Expr("version + 1")})
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", path, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update %s at version %d: %w", path, version, apperr.ErrVersionConflict)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
