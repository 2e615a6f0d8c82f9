// preferences.go: key-value operations on the preferences table
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/quack-go/internal/errors"
)

// Get returns the stored value for key. found is false when the key has
// never been written.
func (ds *DataStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, validationError("key cannot be empty", "key", key)
	}

	var pref Preference
	err := ds.DB.WithContext(ctx).Where("`key` = ?", key).Take(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, dbError(err, "get_preference", "key", key)
	}

	return pref.Value, true, nil
}

// Set inserts or replaces the value for key in a single statement.
func (ds *DataStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return validationError("key cannot be empty", "key", key)
	}

	now := time.Now()
	pref := Preference{Key: key, Value: value, CreatedAt: now, UpdatedAt: now}

	// CreatedAt is kept on conflict so it records the first write
	result := ds.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&pref)

	if result.Error != nil {
		return dbError(result.Error, "set_preference", "key", key)
	}

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (ds *DataStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return validationError("key cannot be empty", "key", key)
	}

	if err := ds.DB.WithContext(ctx).Where("`key` = ?", key).Delete(&Preference{}).Error; err != nil {
		return dbError(err, "delete_preference", "key", key)
	}

	return nil
}

// All returns every stored entry.
func (ds *DataStore) All(ctx context.Context) (map[string]string, error) {
	var prefs []Preference
	if err := ds.DB.WithContext(ctx).Order("`key` ASC").Find(&prefs).Error; err != nil {
		return nil, dbError(err, "list_preferences")
	}

	out := make(map[string]string, len(prefs))
	for i := range prefs {
		out[prefs[i].Key] = prefs[i].Value
	}
	return out, nil
}
