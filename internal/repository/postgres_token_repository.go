package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/ci-results-api/internal/models"
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
)

const tokenColumns = `id, token, email, username, created_on, expires_on, expired, can_read, can_create, can_delete, can_update, is_admin, is_superuser, can_create_token, is_ip_restricted, ip_address`

// tokenRow is the api_tokens table layout. Identifiers are kept as object id
// hex strings so tokens look the same whichever backend stores them.
type tokenRow struct {
	ID        string         `db:"id"`
	Token     string         `db:"token"`
	Email     string         `db:"email"`
	Username  string         `db:"username"`
	CreatedOn time.Time      `db:"created_on"`
	ExpiresOn *time.Time     `db:"expires_on"`
	Expired   bool           `db:"expired"`
	IPAddress pq.StringArray `db:"ip_address"`
	models.Capabilities
}

func (row tokenRow) toModel() (*models.Token, error) {
	id, err := primitive.ObjectIDFromHex(row.ID)
	if err != nil {
		return nil, fmt.Errorf("token id %q: %w", row.ID, err)
	}
	return &models.Token{
		ID:           id,
		Token:        row.Token,
		Email:        row.Email,
		Username:     row.Username,
		CreatedOn:    row.CreatedOn,
		ExpiresOn:    row.ExpiresOn,
		Expired:      row.Expired,
		Capabilities: row.Capabilities,
		IPAddresses:  []string(row.IPAddress),
	}, nil
}

// PostgresTokenRepository persists tokens in the api_tokens table.
type PostgresTokenRepository struct {
	db *sqlx.DB
}

// NewPostgresTokenRepository creates a new instance of PostgresTokenRepository.
func NewPostgresTokenRepository(db *sqlx.DB) *PostgresTokenRepository {
	return &PostgresTokenRepository{db: db}
}

const tokenSchema = `CREATE TABLE IF NOT EXISTS api_tokens (
	id CHAR(24) PRIMARY KEY,
	token TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL DEFAULT '',
	username TEXT NOT NULL DEFAULT '',
	created_on TIMESTAMPTZ NOT NULL,
	expires_on TIMESTAMPTZ NULL,
	expired BOOLEAN NOT NULL DEFAULT FALSE,
	can_read SMALLINT NOT NULL DEFAULT 0,
	can_create SMALLINT NOT NULL DEFAULT 0,
	can_delete SMALLINT NOT NULL DEFAULT 0,
	can_update SMALLINT NOT NULL DEFAULT 0,
	is_admin SMALLINT NOT NULL DEFAULT 0,
	is_superuser SMALLINT NOT NULL DEFAULT 0,
	can_create_token SMALLINT NOT NULL DEFAULT 0,
	is_ip_restricted SMALLINT NOT NULL DEFAULT 0,
	ip_address TEXT[] NOT NULL DEFAULT '{}'
)`

// EnsureSchema creates the api_tokens table when it does not exist yet.
func (r *PostgresTokenRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, tokenSchema); err != nil {
		return fmt.Errorf("create api_tokens: %w", err)
	}
	return nil
}

// Ping checks the token database connection.
func (r *PostgresTokenRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// FindByValue returns the token whose opaque value is value.
func (r *PostgresTokenRepository) FindByValue(ctx context.Context, value string) (*models.Token, error) {
	const query = `SELECT ` + tokenColumns + ` FROM api_tokens WHERE token = $1 LIMIT 1`
	return r.get(ctx, query, value)
}

// FindByID returns the token with id.
func (r *PostgresTokenRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Token, error) {
	const query = `SELECT ` + tokenColumns + ` FROM api_tokens WHERE id = $1 LIMIT 1`
	return r.get(ctx, query, id.Hex())
}

func (r *PostgresTokenRepository) get(ctx context.Context, query string, arg interface{}) (*models.Token, error) {
	var row tokenRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("find token: %w", err)
	}
	return row.toModel()
}

// List returns tokens matching filter, newest first.
func (r *PostgresTokenRepository) List(ctx context.Context, filter models.TokenFilter) ([]models.Token, error) {
	var conditions []string
	var args []interface{}

	if !filter.ID.IsZero() {
		conditions = append(conditions, fmt.Sprintf("id = $%d", len(args)+1))
		args = append(args, filter.ID.Hex())
	}
	if filter.Email != "" {
		conditions = append(conditions, fmt.Sprintf("email = $%d", len(args)+1))
		args = append(args, filter.Email)
	}
	if filter.Username != "" {
		conditions = append(conditions, fmt.Sprintf("username = $%d", len(args)+1))
		args = append(args, filter.Username)
	}

	query := `SELECT ` + tokenColumns + ` FROM api_tokens`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_on DESC"

	var rows []tokenRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	tokens := make([]models.Token, 0, len(rows))
	for _, row := range rows {
		token, err := row.toModel()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	return tokens, nil
}

// Create inserts token and assigns its identifier.
func (r *PostgresTokenRepository) Create(ctx context.Context, token *models.Token) error {
	if token.ID.IsZero() {
		token.ID = primitive.NewObjectID()
	}
	const query = `INSERT INTO api_tokens (` + tokenColumns + `) VALUES (:id, :token, :email, :username, :created_on, :expires_on, :expired, :can_read, :can_create, :can_delete, :can_update, :is_admin, :is_superuser, :can_create_token, :is_ip_restricted, :ip_address)`
	if _, err := r.db.NamedExecContext(ctx, query, toRow(token)); err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// Update replaces the stored token fields, keeping its value and creation date.
func (r *PostgresTokenRepository) Update(ctx context.Context, token *models.Token) error {
	const query = `UPDATE api_tokens SET email = :email, username = :username, expires_on = :expires_on, expired = :expired, can_read = :can_read, can_create = :can_create, can_delete = :can_delete, can_update = :can_update, is_admin = :is_admin, is_superuser = :is_superuser, can_create_token = :can_create_token, is_ip_restricted = :is_ip_restricted, ip_address = :ip_address WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, toRow(token))
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	return requireAffected(res)
}

// Delete removes the token with id.
func (r *PostgresTokenRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	const query = `DELETE FROM api_tokens WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id.Hex())
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return requireAffected(res)
}

func toRow(token *models.Token) tokenRow {
	ips := token.IPAddresses
	if ips == nil {
		ips = []string{}
	}
	return tokenRow{
		ID:           token.ID.Hex(),
		Token:        token.Token,
		Email:        token.Email,
		Username:     token.Username,
		CreatedOn:    token.CreatedOn,
		ExpiresOn:    token.ExpiresOn,
		Expired:      token.Expired,
		IPAddress:    pq.StringArray(ips),
		Capabilities: token.Capabilities,
	}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return appErrors.ErrDocumentNotFound
	}
	return nil
}
