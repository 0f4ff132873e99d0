package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"connecto/models"
)

// sessionRecord is the single-row table backing FileStore.
type sessionRecord struct {
	ID       uint `gorm:"primaryKey"`
	Token    string
	UserJSON []byte
}

func (sessionRecord) TableName() string { return "session" }

const recordID = 1

// FileStore keeps the session in a local SQLite database so that re-opening
// the client resumes the authenticated state without another login.
type FileStore struct {
	db *gorm.DB
}

// NewFileStore opens (creating if needed) the session database at path.
func NewFileStore(path string) (*FileStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, err
	}
	return &FileStore{db: db}, nil
}

// Get returns the stored session. A corrupted persisted session is treated as
// equivalent to no session at all.
func (s *FileStore) Get(ctx context.Context) (Session, error) {
	var rec sessionRecord
	err := s.db.WithContext(ctx).First(&rec, recordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, err
	}

	sess := Session{Token: rec.Token}
	if len(rec.UserJSON) > 0 {
		var user models.User
		if err := json.Unmarshal(rec.UserJSON, &user); err != nil {
			log.Printf("session: discarding corrupted session record: %v", err)
			return Session{}, nil
		}
		sess.User = &user
	}
	return sess, nil
}

// Set replaces the stored session with the given token and user.
func (s *FileStore) Set(ctx context.Context, token string, user *models.User) error {
	rec := sessionRecord{ID: recordID, Token: token}
	if user != nil {
		b, err := json.Marshal(user)
		if err != nil {
			return err
		}
		rec.UserJSON = b
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
}

// Clear removes the stored session. Deleting an absent row is a no-op, so the
// call is idempotent.
func (s *FileStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Delete(&sessionRecord{}, recordID).Error
}

// Close releases the underlying database handle.
func (s *FileStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
