package identity

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Account is the local mirror of a user registered with the upstream
// identity provider. It exists so staff can address learners by email.
type Account struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false"`
	Username   string    `gorm:"type:varchar(150);not null"`
	Email      string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	DateJoined time.Time `gorm:"not null"`
}

func (Account) TableName() string { return "auth_user" }

// Directory resolves learners by email.
type Directory interface {
	Register(ctx context.Context, user User) error
	FindByEmail(ctx context.Context, email string) (User, bool, error)
}

type gormDirectory struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDirectory(db *gorm.DB) Directory {
	return &gormDirectory{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Register inserts the account or refreshes its username and email.
func (d *gormDirectory) Register(ctx context.Context, user User) error {
	if !user.IsAuthenticated() {
		return nil
	}
	account := Account{
		ID:         user.ID,
		Username:   user.Username,
		Email:      strings.ToLower(strings.TrimSpace(user.Email)),
		DateJoined: d.now(),
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "email"}),
	}).Create(&account).Error
}

func (d *gormDirectory) FindByEmail(ctx context.Context, email string) (User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Anonymous, false, nil
	}

	var account Account
	err := d.db.WithContext(ctx).Raw(
		`SELECT id, username, email, date_joined FROM auth_user WHERE email = ?`,
		email,
	).Scan(&account).Error
	if err != nil {
		return Anonymous, false, err
	}
	if account.ID == 0 {
		return Anonymous, false, nil
	}
	return User{ID: account.ID, Username: account.Username, Email: account.Email}, true, nil
}
