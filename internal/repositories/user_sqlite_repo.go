package repositories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/database"
	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
)

// SQLiteUserRepository is the users table on the SQLite backend
type SQLiteUserRepository struct {
	db *sql.DB
}

func NewSQLiteUserRepository(db *database.SQLiteDB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db.Conn}
}

func scanSQLiteUser(scanner rowScanner) (*models.User, error) {
	var user models.User
	var createdAt, updatedAt int64
	err := scanner.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, database.MapSQLiteError(err)
	}
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return &user, nil
}

func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanSQLiteUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanSQLiteUser(r.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

func (r *SQLiteUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	prepareNewUser(user, time.Now())

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role,
		toMillis(user.CreatedAt), toMillis(user.UpdatedAt),
	)
	if err != nil {
		return nil, database.MapSQLiteError(err)
	}

	return user, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
