package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/garderoba/internal/model"
)

const requestColumns = `id, user_id, user_name, garment_name, brand, status, resolved_code, created_at`

// Notification texts for request events.
const (
	RequestSentTitle    = "Request Sent"
	RequestSentMessage  = "Your request for an access code for %s has been sent. Check your notifications for the approved PIN."
	CodeReceivedTitle   = "Access Approved"
	CodeReceivedMessage = "Your code for %s is approved. PIN: %s. You can now add the item to your vault."
	DeniedTitle         = "Access Denied"
	DeniedMessage       = "Your request for %s (%s) was not approved."
)

// CreateRequest files a pending access request and tells the user it was sent.
func CreateRequest(ctx context.Context, db *sql.DB, userID, userName, garmentName, brand string) (*model.AccessRequest, error) {
	if strings.TrimSpace(brand) == "" {
		brand = model.DefaultBrand
	}

	req := &model.AccessRequest{
		ID:          uuid.NewString(),
		UserID:      model.NormalizeEmail(userID),
		UserName:    userName,
		GarmentName: garmentName,
		Brand:       brand,
		Status:      model.RequestPending,
		CreatedAt:   time.Now().UTC(),
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO access_requests (id, user_id, user_name, garment_name, brand, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.UserID, req.UserName, req.GarmentName, req.Brand, req.Status, req.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	err = insertNotification(ctx, tx, req.UserID, RequestSentTitle,
		fmt.Sprintf(RequestSentMessage, req.GarmentName), model.NotifyRequestSent)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing request: %w", err)
	}
	return req, nil
}

// GetRequest returns an access request by ID.
func GetRequest(ctx context.Context, db *sql.DB, id string) (*model.AccessRequest, error) {
	req, err := scanRequest(db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM access_requests WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	return req, nil
}

// LatestActiveRequest returns the user's newest request that is pending or
// resolved. Denied requests are ignored.
func LatestActiveRequest(ctx context.Context, db *sql.DB, userID string) (*model.AccessRequest, error) {
	req, err := scanRequest(db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM access_requests
		 WHERE user_id = ? AND status IN (?, ?)
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		model.NormalizeEmail(userID), model.RequestPending, model.RequestResolved,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest request: %w", err)
	}
	return req, nil
}

// LatestRequest returns the user's newest request in any status.
func LatestRequest(ctx context.Context, db *sql.DB, userID string) (*model.AccessRequest, error) {
	req, err := scanRequest(db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM access_requests
		 WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		model.NormalizeEmail(userID),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest request: %w", err)
	}
	return req, nil
}

// ListRequests returns all access requests, newest first.
func ListRequests(ctx context.Context, db *sql.DB) ([]model.AccessRequest, error) {
	return queryRequests(ctx, db,
		`SELECT `+requestColumns+` FROM access_requests ORDER BY created_at DESC, rowid DESC`)
}

// ListUserRequests returns one user's access requests, newest first.
func ListUserRequests(ctx context.Context, db *sql.DB, userID string) ([]model.AccessRequest, error) {
	return queryRequests(ctx, db,
		`SELECT `+requestColumns+` FROM access_requests WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`,
		model.NormalizeEmail(userID))
}

// ResolveRequest approves a pending request with code and notifies the user.
func ResolveRequest(ctx context.Context, db *sql.DB, id, code string) (*model.AccessRequest, error) {
	return finishRequest(ctx, db, id, model.RequestResolved, code)
}

// DenyRequest rejects a pending request and notifies the user.
func DenyRequest(ctx context.Context, db *sql.DB, id string) (*model.AccessRequest, error) {
	return finishRequest(ctx, db, id, model.RequestDenied, "")
}

// finishRequest moves a pending request into a terminal status and inserts the
// matching notification in the same transaction.
func finishRequest(ctx context.Context, db *sql.DB, id, status, code string) (*model.AccessRequest, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	req, err := scanRequest(tx.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM access_requests WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("request: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	if req.Status != model.RequestPending {
		return nil, ErrNotPending
	}

	var resolved any
	if code != "" {
		resolved = code
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE access_requests SET status = ?, resolved_code = ? WHERE id = ? AND status = ?`,
		status, resolved, id, model.RequestPending,
	)
	if err != nil {
		return nil, fmt.Errorf("updating request: %w", err)
	}

	var title, message, kind string
	if status == model.RequestResolved {
		title = CodeReceivedTitle
		message = fmt.Sprintf(CodeReceivedMessage, req.GarmentName, code)
		kind = model.NotifyCodeReceived
	} else {
		title = DeniedTitle
		message = fmt.Sprintf(DeniedMessage, req.GarmentName, req.Brand)
		kind = model.NotifyRequestDenied
	}
	if err := insertNotification(ctx, tx, req.UserID, title, message, kind); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing request update: %w", err)
	}

	req.Status = status
	req.ResolvedCode = code
	return req, nil
}

func queryRequests(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.AccessRequest, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	var requests []model.AccessRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func scanRequest(row rowScanner) (*model.AccessRequest, error) {
	req := &model.AccessRequest{}
	var code sql.NullString
	if err := row.Scan(&req.ID, &req.UserID, &req.UserName, &req.GarmentName, &req.Brand,
		&req.Status, &code, &req.CreatedAt); err != nil {
		return nil, err
	}
	req.ResolvedCode = code.String
	return req, nil
}
