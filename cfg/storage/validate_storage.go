package storage

import (
	"github.com/ZacharyGroff/kodawari/cfg/validator"
	"github.com/pkg/errors"
)

// ValidateStorage 在转换前设置默认值，转换后校验结构体
type ValidateStorage struct {
	storage Storage
}

func NewValidateStorage(storage Storage) *ValidateStorage {
	return &ValidateStorage{storage: storage}
}

func (vs *ValidateStorage) Sub(key string) Storage {
	return NewValidateStorage(vs.storage.Sub(key))
}

func (vs *ValidateStorage) ConvertTo(object any) error {
	if err := SetDefaults(object); err != nil {
		return err
	}
	if err := vs.storage.ConvertTo(object); err != nil {
		return err
	}
	if err := validator.ValidateStruct(object); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
