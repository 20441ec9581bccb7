package validation

import (
	"errors"
	"fmt"
	"regexp"
)

// CollectionPattern определяет допустимый формат имени коллекции:
// строчные латинские буквы, цифры, '_' и '-', первая буква обязательна
var CollectionPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

const (
	// MaxCollectionLen максимальная длина имени коллекции
	MaxCollectionLen = 64
	// MaxIDLen максимальная длина id сущности
	MaxIDLen = 128
)

// ErrInvalidCollection indicates that a collection name is not acceptable
var ErrInvalidCollection = errors.New("invalid collection")

// ErrInvalidID indicates that an entity id is not acceptable
var ErrInvalidID = errors.New("invalid id")

// ValidateCollection проверяет имя коллекции из URL
func ValidateCollection(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidCollection)
	}

	if len(name) > MaxCollectionLen {
		return fmt.Errorf("%w: name must not exceed %d characters", ErrInvalidCollection, MaxCollectionLen)
	}

	if !CollectionPattern.MatchString(name) {
		return fmt.Errorf("%w: name can only contain lowercase letters, numbers, '_' and '-', starting with a letter", ErrInvalidCollection)
	}

	return nil
}

// ValidateID проверяет id сущности
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidID)
	}

	if len(id) > MaxIDLen {
		return fmt.Errorf("%w: id must not exceed %d characters", ErrInvalidID, MaxIDLen)
	}

	return nil
}
