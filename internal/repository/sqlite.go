package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/abrezinsky/pageantvote/internal/models"
)

// Repository provides data access methods
type Repository struct {
	db *sql.DB
}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

// dsn enables foreign keys and a busy timeout on every connection the pool opens
func dsn(dbPath string) string {
	if strings.Contains(dbPath, "?") {
		return dbPath
	}
	return dbPath + "?_foreign_keys=on&_busy_timeout=5000"
}

// DB returns the underlying database connection (for transactions)
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS contestants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			full_name TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			phone TEXT NOT NULL,
			age INTEGER NOT NULL,
			bio TEXT NOT NULL,
			photo TEXT,
			photo_blob BLOB,
			photo_content_type TEXT,
			votes INTEGER NOT NULL DEFAULT 0,
			registered_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS votes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			contestant_id INTEGER NOT NULL,
			voter_email TEXT UNIQUE NOT NULL,
			ip_address TEXT UNIQUE,
			voted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (contestant_id) REFERENCES contestants(id)
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			buyer_name TEXT NOT NULL,
			buyer_email TEXT NOT NULL,
			phone TEXT NOT NULL,
			ticket_type TEXT NOT NULL,
			price REAL NOT NULL,
			payment_method TEXT NOT NULL DEFAULT 'pesepay',
			payment_status TEXT NOT NULL DEFAULT 'pending',
			merchant_reference TEXT UNIQUE NOT NULL,
			transaction_reference TEXT UNIQUE,
			poll_url TEXT,
			purchased_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_contestant ON votes(contestant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_type ON tickets(ticket_type)`,
	}

	for _, m := range migrations {
		if _, err := r.db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}

// nullString stores empty strings as NULL so they never collide under UNIQUE
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ==================== Contestants ====================

// CreateContestant inserts a contestant with zero votes and returns its ID.
// A duplicate email yields *DuplicateKeyError.
func (r *Repository) CreateContestant(ctx context.Context, c models.Contestant, photo *models.ContestantPhoto) (int64, error) {
	var (
		filename    sql.NullString
		blob        []byte
		contentType sql.NullString
	)
	// at most one of photo and photo_blob is stored; a blob wins
	if photo != nil {
		if len(photo.Blob) > 0 {
			blob = photo.Blob
			contentType = nullString(photo.ContentType)
		} else {
			filename = nullString(photo.Filename)
		}
	}

	registeredAt := c.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO contestants (full_name, email, phone, age, bio, photo, photo_blob, photo_content_type, votes, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, c.FullName, c.Email, c.Phone, c.Age, c.Bio, filename, blob, contentType, registeredAt)
	if err != nil {
		return 0, classifyConstraint(err)
	}
	return result.LastInsertId()
}

const contestantColumns = `id, full_name, email, phone, age, bio, COALESCE(photo, ''),
	photo_blob IS NOT NULL, votes, registered_at`

func scanContestant(scanner interface{ Scan(...any) error }) (models.Contestant, error) {
	var c models.Contestant
	var registeredAt sql.NullTime
	err := scanner.Scan(&c.ID, &c.FullName, &c.Email, &c.Phone, &c.Age, &c.Bio,
		&c.Photo, &c.HasPhotoBlob, &c.Votes, &registeredAt)
	if registeredAt.Valid {
		c.RegisteredAt = registeredAt.Time
	}
	return c, err
}

// GetContestant returns a single contestant
func (r *Repository) GetContestant(ctx context.Context, id int64) (*models.Contestant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+contestantColumns+` FROM contestants WHERE id = ?`, id)
	c, err := scanContestant(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContestants returns all contestants ordered by votes, highest first
func (r *Repository) ListContestants(ctx context.Context) ([]models.Contestant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contestantColumns+`
		FROM contestants
		ORDER BY votes DESC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contestants := []models.Contestant{}
	for rows.Next() {
		c, err := scanContestant(rows)
		if err != nil {
			return nil, err
		}
		contestants = append(contestants, c)
	}
	return contestants, rows.Err()
}

// GetContestantPhoto returns the stored photo reference for a contestant.
// Returns ErrNotFound when the contestant does not exist or has no photo.
func (r *Repository) GetContestantPhoto(ctx context.Context, id int64) (*models.ContestantPhoto, error) {
	var (
		filename    sql.NullString
		blob        []byte
		contentType sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT photo, photo_blob, photo_content_type FROM contestants WHERE id = ?
	`, id).Scan(&filename, &blob, &contentType)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(blob) == 0 && filename.String == "" {
		return nil, ErrNotFound
	}
	return &models.ContestantPhoto{
		Blob:        blob,
		ContentType: contentType.String,
		Filename:    filename.String,
	}, nil
}

// CountContestants returns the number of registered contestants
func (r *Repository) CountContestants(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contestants`).Scan(&count)
	return count, err
}

// ==================== Votes ====================

// CastVote records a vote and bumps the contestant counter atomically.
// Returns ErrNotFound for an unknown contestant and *DuplicateKeyError when the
// voter email or IP address has already voted.
func (r *Repository) CastVote(ctx context.Context, contestantID int64, voterEmail, ipAddress string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM contestants WHERE id = ?`, contestantID).Scan(&exists)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO votes (contestant_id, voter_email, ip_address, voted_at)
		VALUES (?, ?, ?, ?)
	`, contestantID, voterEmail, nullString(ipAddress), time.Now().UTC())
	if err != nil {
		return 0, classifyConstraint(err)
	}

	voteID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE contestants SET votes = votes + 1 WHERE id = ?`, contestantID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return voteID, nil
}

// ListTallies returns the vote counter of every contestant, highest first.
// Percentages are left at zero for the caller to fill in.
func (r *Repository) ListTallies(ctx context.Context) ([]models.ContestantResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, full_name, votes
		FROM contestants
		ORDER BY votes DESC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []models.ContestantResult{}
	for rows.Next() {
		var res models.ContestantResult
		if err := rows.Scan(&res.ContestantID, &res.FullName, &res.Votes); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// RecountVotes compares each contestant counter with its vote rows
// and returns the ones that disagree.
func (r *Repository) RecountVotes(ctx context.Context) ([]models.TallyMismatch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.votes, COUNT(v.id)
		FROM contestants c
		LEFT JOIN votes v ON v.contestant_id = c.id
		GROUP BY c.id
		HAVING c.votes != COUNT(v.id)
		ORDER BY c.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mismatches := []models.TallyMismatch{}
	for rows.Next() {
		var m models.TallyMismatch
		if err := rows.Scan(&m.ContestantID, &m.Counter, &m.Actual); err != nil {
			return nil, err
		}
		mismatches = append(mismatches, m)
	}
	return mismatches, rows.Err()
}

// CountVotes returns the total number of votes cast
func (r *Repository) CountVotes(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes`).Scan(&count)
	return count, err
}

// ==================== Tickets ====================

// CreateTicket persists a ticket and returns its ID
func (r *Repository) CreateTicket(ctx context.Context, t models.Ticket) (int64, error) {
	status := t.PaymentStatus
	if status == "" {
		status = models.PaymentPending
	}
	method := t.PaymentMethod
	if method == "" {
		method = "pesepay"
	}
	now := time.Now().UTC()
	purchasedAt := t.PurchasedAt
	if purchasedAt.IsZero() {
		purchasedAt = now
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO tickets (buyer_name, buyer_email, phone, ticket_type, price, payment_method,
			payment_status, merchant_reference, transaction_reference, poll_url, purchased_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.BuyerName, t.BuyerEmail, t.Phone, t.TicketType, t.Price, method,
		string(status), t.MerchantReference, nullString(t.TransactionReference), nullString(t.PollURL),
		purchasedAt, now)
	if err != nil {
		return 0, classifyConstraint(err)
	}
	return result.LastInsertId()
}

// GetTicketByReference looks a ticket up by its gateway transaction reference
func (r *Repository) GetTicketByReference(ctx context.Context, reference string) (*models.Ticket, error) {
	var (
		t           models.Ticket
		status      string
		txRef       sql.NullString
		pollURL     sql.NullString
		purchasedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, buyer_name, buyer_email, phone, ticket_type, price, payment_method,
			payment_status, merchant_reference, transaction_reference, poll_url, purchased_at
		FROM tickets
		WHERE transaction_reference = ?
	`, reference).Scan(&t.ID, &t.BuyerName, &t.BuyerEmail, &t.Phone, &t.TicketType, &t.Price,
		&t.PaymentMethod, &status, &t.MerchantReference, &txRef, &pollURL, &purchasedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	t.PaymentStatus = models.PaymentStatus(status)
	t.TransactionReference = txRef.String
	t.PollURL = pollURL.String
	if purchasedAt.Valid {
		t.PurchasedAt = purchasedAt.Time
	}
	return &t, nil
}

// UpdateTicketStatus moves a pending ticket to status. Tickets that already
// left pending are untouched; the returned bool reports whether a row changed.
func (r *Repository) UpdateTicketStatus(ctx context.Context, reference string, status models.PaymentStatus) (bool, error) {
	if status == models.PaymentPending {
		return false, nil
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE tickets
		SET payment_status = ?, updated_at = ?
		WHERE transaction_reference = ? AND payment_status = ?
	`, string(status), time.Now().UTC(), reference, string(models.PaymentPending))
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// TicketStats aggregates tickets per type
func (r *Repository) TicketStats(ctx context.Context) ([]models.TicketStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ticket_type,
			COUNT(*),
			COALESCE(SUM(CASE WHEN payment_status = 'paid' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(price), 0),
			COALESCE(SUM(CASE WHEN payment_status = 'paid' THEN price ELSE 0 END), 0)
		FROM tickets
		GROUP BY ticket_type
		ORDER BY ticket_type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []models.TicketStats{}
	for rows.Next() {
		var s models.TicketStats
		if err := rows.Scan(&s.TicketType, &s.Count, &s.PaidCount, &s.TotalRevenue, &s.PaidRevenue); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
