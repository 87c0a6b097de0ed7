// Package store persists hosts, rooms, song requests, and votes in SQLite.
//
// Mutations that must be serialized per entity (vote counting, status
// transitions) are expressed as single transactions or checked writes so the
// vote_count == |voter set| invariant and the status transition table hold
// under concurrent callers.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate")

// ErrTerminalStatus is returned when a vote targets a song whose status no
// longer accepts votes.
var ErrTerminalStatus = errors.New("terminal status")

// Host is a registered room owner.
type Host struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Room is a PIN-coded request session. HostEmail is populated on lookups
// that join the owning host.
type Room struct {
	ID        string
	Code      string
	HostID    string
	HostEmail string
	State     string
	CreatedAt time.Time
	ClosedAt  sql.NullTime
}

// Song request statuses. Played and Rejected are terminal.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusPlayed   = "played"
	StatusRejected = "rejected"
)

// Room states.
const (
	RoomOpen   = "open"
	RoomClosed = "closed"
)

// Song is one attendee-submitted track under host moderation.
type Song struct {
	ID              string
	RoomID          string
	ExternalTrackID string
	Title           string
	ThumbnailURL    string
	ExternalURL     string
	SubmitterLabel  string
	Status          string
	VoteCount       int64
	RequestedAt     time.Time
}

// Store wraps the SQL database with typed queries.
type Store struct {
	db *sql.DB
}

// New creates a Store backed by the given database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// isUniqueViolation reports whether err is a SQLite uniqueness constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateHost inserts a new host. Returns ErrDuplicate if the email is taken.
func (s *Store) CreateHost(ctx context.Context, h Host) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hosts (id, email, password_hash) VALUES (?, ?, ?)
	`, h.ID, h.Email, h.PasswordHash)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: email %s", ErrDuplicate, h.Email)
	}
	return err
}

// GetHostByEmail looks up a host by email. Returns ErrNotFound if absent.
func (s *Store) GetHostByEmail(ctx context.Context, email string) (Host, error) {
	var h Host
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at FROM hosts WHERE email = ?
	`, email).Scan(&h.ID, &h.Email, &h.PasswordHash, &h.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Host{}, ErrNotFound
	}
	return h, err
}

// CreateRoom inserts a new open room. Returns ErrDuplicate if another open
// room already holds the code (the partial unique index on open rooms).
func (s *Store) CreateRoom(ctx context.Context, r Room) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, code, host_id, state) VALUES (?, ?, ?, 'open')
	`, r.ID, r.Code, r.HostID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: code %s", ErrDuplicate, r.Code)
	}
	return err
}

const roomColumns = `
	r.id, r.code, r.host_id, h.email, r.state, r.created_at, r.closed_at
	FROM rooms r JOIN hosts h ON h.id = r.host_id`

func scanRoom(row *sql.Row) (Room, error) {
	var r Room
	err := row.Scan(&r.ID, &r.Code, &r.HostID, &r.HostEmail, &r.State, &r.CreatedAt, &r.ClosedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrNotFound
	}
	return r, err
}

// GetOpenRoomByCode resolves a code to its open room. Closed rooms are not
// resolvable; their codes are free for reuse.
func (s *Store) GetOpenRoomByCode(ctx context.Context, code string) (Room, error) {
	return scanRoom(s.db.QueryRowContext(ctx, `
		SELECT `+roomColumns+` WHERE r.code = ? AND r.state = 'open'
	`, code))
}

// GetRoomByID fetches a room regardless of state.
func (s *Store) GetRoomByID(ctx context.Context, id string) (Room, error) {
	return scanRoom(s.db.QueryRowContext(ctx, `
		SELECT `+roomColumns+` WHERE r.id = ?
	`, id))
}

// GetOpenRoomByHost returns the host's currently open room, if any.
func (s *Store) GetOpenRoomByHost(ctx context.Context, hostID string) (Room, error) {
	return scanRoom(s.db.QueryRowContext(ctx, `
		SELECT `+roomColumns+` WHERE r.host_id = ? AND r.state = 'open'
		ORDER BY r.created_at LIMIT 1
	`, hostID))
}

// CountOpenRooms returns how many rooms currently hold a code.
func (s *Store) CountOpenRooms(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rooms WHERE state = 'open'
	`).Scan(&n)
	return n, err
}

// CloseRoom transitions an open room to closed, releasing its code. The
// checked write makes double-close a no-op reported as ErrNotFound.
func (s *Store) CloseRoom(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rooms SET state = 'closed', closed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND state = 'open'
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSong inserts a new pending song request.
func (s *Store) CreateSong(ctx context.Context, song Song) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO songs (id, room_id, external_track_id, title, thumbnail_url,
			external_url, submitter_label, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending')
	`, song.ID, song.RoomID, song.ExternalTrackID, song.Title,
		song.ThumbnailURL, song.ExternalURL, song.SubmitterLabel)
	return err
}

const songColumns = `
	id, room_id, external_track_id, title, thumbnail_url, external_url,
	submitter_label, status, vote_count, requested_at FROM songs`

// GetSongByID fetches a single song request. Returns ErrNotFound if absent.
func (s *Store) GetSongByID(ctx context.Context, id string) (Song, error) {
	var song Song
	err := s.db.QueryRowContext(ctx, `
		SELECT `+songColumns+` WHERE id = ?
	`, id).Scan(&song.ID, &song.RoomID, &song.ExternalTrackID, &song.Title,
		&song.ThumbnailURL, &song.ExternalURL, &song.SubmitterLabel,
		&song.Status, &song.VoteCount, &song.RequestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Song{}, ErrNotFound
	}
	return song, err
}

// ListSongsByRoom returns the room's songs in creation order. Rejected songs
// are included only when includeRejected is set (host view).
func (s *Store) ListSongsByRoom(ctx context.Context, roomID string, includeRejected bool) ([]Song, error) {
	query := `SELECT ` + songColumns + ` WHERE room_id = ?`
	if !includeRejected {
		query += ` AND status != 'rejected'`
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	songs := []Song{}
	for rows.Next() {
		var song Song
		if err := rows.Scan(&song.ID, &song.RoomID, &song.ExternalTrackID,
			&song.Title, &song.ThumbnailURL, &song.ExternalURL,
			&song.SubmitterLabel, &song.Status, &song.VoteCount,
			&song.RequestedAt); err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

// AddVote records a vote for a song by a session token. The voter-set insert
// and the counter increment commit in one transaction, so vote_count always
// equals the number of voter rows. A token that has already voted is a no-op
// and reports added = false. Votes on songs in a terminal status fail with
// ErrTerminalStatus.
func (s *Store) AddVote(ctx context.Context, songID, voterToken string) (added bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	// The status gate lives inside the transaction: a concurrent transition
	// to a terminal status either commits before this read and blocks the
	// vote, or commits after ours and leaves it intact.
	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM songs WHERE id = ?
	`, songID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: song %s", ErrNotFound, songID)
	}
	if err != nil {
		return false, err
	}
	if status != StatusPending && status != StatusApproved {
		return false, fmt.Errorf("%w: cannot vote on %s song", ErrTerminalStatus, status)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO votes (song_id, voter_token) VALUES (?, ?)
	`, songID, voterToken)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Already voted; nothing to commit but the read lock.
		return false, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE songs SET vote_count = vote_count + 1 WHERE id = ?
	`, songID); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// CountVotes returns the size of a song's voter set.
func (s *Store) CountVotes(ctx context.Context, songID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM votes WHERE song_id = ?
	`, songID).Scan(&n)
	return n, err
}

// UpdateSongStatus performs a checked status transition: the write only lands
// if the song's current status is one of fromStatuses. Reports whether a row
// was updated; a false result with an existing song means the transition was
// illegal at the time of the write.
func (s *Store) UpdateSongStatus(ctx context.Context, songID string, fromStatuses []string, to string) (bool, error) {
	if len(fromStatuses) == 0 {
		return false, nil
	}

	placeholders := strings.Repeat("?, ", len(fromStatuses)-1) + "?"
	args := make([]any, 0, len(fromStatuses)+2)
	args = append(args, to, songID)
	for _, from := range fromStatuses {
		args = append(args, from)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE songs SET status = ? WHERE id = ? AND status IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
