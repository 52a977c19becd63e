package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gudang/internal/models"
)

// GORMUserRepository is a GORM implementation of UserRepository. It
// reports lookups of absent accounts as ErrAccountNotFound and unique
// index violations (username, email) as ErrDuplicateAccount, matching
// the taxonomy the product repository uses.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new staff account in the database.
func (r *GORMUserRepository) Create(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("username or email taken: %w", ErrDuplicateAccount)
		}
		return fmt.Errorf("failed to create account: %w", classifyStorageError(err))
	}
	return nil
}

// GetByUsername retrieves a staff account by its username.
func (r *GORMUserRepository) GetByUsername(username string) (*models.User, error) {
	return r.getBy("username", username)
}

// GetByEmail retrieves a staff account by its email address.
func (r *GORMUserRepository) GetByEmail(email string) (*models.User, error) {
	return r.getBy("email", email)
}

// GetByID retrieves a staff account by its ID.
func (r *GORMUserRepository) GetByID(id string) (*models.User, error) {
	return r.getBy("id", id)
}

func (r *GORMUserRepository) getBy(column, value string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, column+" = ?", value).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s %s: %w", column, value, ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to get account by %s %s: %w", column, value, classifyStorageError(err))
	}
	return &user, nil
}
