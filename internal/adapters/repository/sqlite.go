package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/pkg/logger"
	"github.com/okian/merit/pkg/metrics"
)

// SQLiteStore implements Store on a single SQLite file. Write transactions
// begin IMMEDIATE so concurrent awards for the same user serialize on the
// database write lock instead of failing at commit.
type SQLiteStore struct {
	db      *sql.DB
	timeout time.Duration
	log     logger.Logger
	maxOpen int
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		timeout: defaultTimeout,
		log:     logger.Nop(),
		maxOpen: 4,
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpen)

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(pctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	s.db = db
	s.log.Info(ctx, "sqlite store opened", logger.String("path", path))
	return s, nil
}

func dsn(path string) string {
	return path + "?_txlock=immediate" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)"
}

// Close releases the connection pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// bound detaches ctx from caller cancellation and applies the store
// timeout, so an operation either completes or times out as a whole.
func (s *SQLiteStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// InTx implements Store.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	defer observe("tx", time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(ctx, &sqliteTx{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapErr("commit", err)
	}
	committed = true
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EventExists implements Store.
func (s *SQLiteStore) EventExists(ctx context.Context, sourceKey string) (bool, error) {
	defer observe("event_exists", time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return eventExists(ctx, s.db, sourceKey)
}

// UserEvents implements Store.
func (s *SQLiteStore) UserEvents(ctx context.Context, userID string, limit int) ([]model.MeritEvent, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	defer observe("user_events", time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, role, event_type, base_points, multiplier, awarded_points,
		       season_id, source_key, metadata, created_at
		FROM merit_events WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, mapErr("user events", err)
	}
	defer rows.Close()

	var out []model.MeritEvent
	for rows.Next() {
		var (
			e       model.MeritEvent
			meta    string
			created int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Role, &e.EventType, &e.BasePoints, &e.Multiplier,
			&e.AwardedPoints, &e.SeasonID, &e.SourceKey, &meta, &created); err != nil {
			return nil, mapErr("scan event", err)
		}
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", e.ID, err)
			}
		}
		e.CreatedAt = fromMillis(created)
		out = append(out, e)
	}
	return out, mapErr("user events", rows.Err())
}

// Streak implements Store.
func (s *SQLiteStore) Streak(ctx context.Context, userID string) (model.UserStreak, error) {
	defer observe("streak", time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return getStreak(ctx, s.db, userID)
}

// Season implements Store.
func (s *SQLiteStore) Season(ctx context.Context, id string) (model.Season, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return getSeason(ctx, s.db, id)
}

// Seasons implements Store.
func (s *SQLiteStore) Seasons(ctx context.Context) ([]model.Season, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return listSeasons(ctx, s.db, "")
}

// ActiveSeasons implements Store.
func (s *SQLiteStore) ActiveSeasons(ctx context.Context) ([]model.Season, error) {
	defer observe("active_seasons", time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return listSeasons(ctx, s.db, model.SeasonActive)
}

// Membership implements Store.
func (s *SQLiteStore) Membership(ctx context.Context, userID, seasonID string) (model.LeagueMembership, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, season_id, league, points, role, created_at
		FROM league_memberships WHERE user_id = ? AND season_id = ?`, userID, seasonID)
	m, err := scanMembership(row)
	if err != nil {
		return model.LeagueMembership{}, mapErr("membership", err)
	}
	return m, nil
}

// Memberships implements Store.
func (s *SQLiteStore) Memberships(ctx context.Context, seasonID string, f MembershipFilter) ([]model.LeagueMembership, error) {
	defer observe("memberships", time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return listMemberships(ctx, s.db, seasonID, f)
}

// LeagueChanges implements Store.
func (s *SQLiteStore) LeagueChanges(ctx context.Context, fromSeasonID string) ([]model.LeagueChange, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, role, from_season_id, to_season_id, from_league, to_league, points, position, cohort_size
		FROM league_changes WHERE from_season_id = ?
		ORDER BY role, position`, fromSeasonID)
	if err != nil {
		return nil, mapErr("league changes", err)
	}
	defer rows.Close()

	var out []model.LeagueChange
	for rows.Next() {
		var c model.LeagueChange
		if err := rows.Scan(&c.UserID, &c.Role, &c.FromSeasonID, &c.ToSeasonID, &c.From, &c.To,
			&c.Points, &c.Position, &c.CohortSize); err != nil {
			return nil, mapErr("scan league change", err)
		}
		out = append(out, c)
	}
	return out, mapErr("league changes", rows.Err())
}

const eligibilityChunk = 500

// Eligible implements Store.
func (s *SQLiteStore) Eligible(ctx context.Context, userIDs []string) (map[string]bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	out := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		out[id] = true
	}
	for start := 0; start < len(userIDs); start += eligibilityChunk {
		end := min(start+eligibilityChunk, len(userIDs))
		chunk := userIDs[start:end]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		q := `SELECT user_id, eligible FROM user_eligibility WHERE user_id IN (?` +
			strings.Repeat(",?", len(chunk)-1) + `)`
		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, mapErr("eligibility", err)
		}
		for rows.Next() {
			var (
				id string
				ok bool
			)
			if err := rows.Scan(&id, &ok); err != nil {
				rows.Close()
				return nil, mapErr("scan eligibility", err)
			}
			out[id] = ok
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, mapErr("eligibility", err)
		}
	}
	return out, nil
}

// SetEligibility implements Store.
func (s *SQLiteStore) SetEligibility(ctx context.Context, userID string, eligible bool, reason string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_eligibility (user_id, eligible, reason, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			eligible = excluded.eligible, reason = excluded.reason, updated_at = excluded.updated_at`,
		userID, eligible, reason, toMillis(time.Now()))
	return mapErr("set eligibility", err)
}

// sqliteTx implements Tx.
type sqliteTx struct {
	q querier
}

func (t *sqliteTx) EventExists(ctx context.Context, sourceKey string) (bool, error) {
	return eventExists(ctx, t.q, sourceKey)
}

func (t *sqliteTx) InsertEvent(ctx context.Context, e model.MeritEvent) (bool, error) {
	meta := "{}"
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return false, fmt.Errorf("encode metadata: %w", err)
		}
		meta = string(b)
	}
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO merit_events (id, user_id, role, event_type, base_points, multiplier, awarded_points,
		                          season_id, source_key, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_key) DO NOTHING`,
		e.ID, e.UserID, string(e.Role), string(e.EventType), e.BasePoints, e.Multiplier, e.AwardedPoints,
		e.SeasonID, e.SourceKey, meta, toMillis(e.CreatedAt))
	if err != nil {
		return false, mapErr("insert event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapErr("insert event", err)
	}
	return n == 1, nil
}

func (t *sqliteTx) CountEvents(ctx context.Context, userID string, event model.EventType, since time.Time) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM merit_events
		WHERE user_id = ? AND event_type = ? AND created_at >= ?`,
		userID, string(event), toMillis(since)).Scan(&n)
	return n, mapErr("count events", err)
}

func (t *sqliteTx) Streak(ctx context.Context, userID string) (model.UserStreak, error) {
	return getStreak(ctx, t.q, userID)
}

func (t *sqliteTx) PutStreak(ctx context.Context, s model.UserStreak) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO user_streaks (user_id, current_streak_days, best_streak_days, shelters_available, last_scored_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak_days = excluded.current_streak_days,
			best_streak_days    = excluded.best_streak_days,
			shelters_available  = excluded.shelters_available,
			last_scored_date    = excluded.last_scored_date,
			updated_at          = excluded.updated_at`,
		s.UserID, s.CurrentStreakDays, s.BestStreakDays, s.SheltersAvailable, s.LastScoredDate.String(), toMillis(time.Now()))
	return mapErr("put streak", err)
}

func (t *sqliteTx) StaleStreaks(ctx context.Context, before model.Date) ([]model.UserStreak, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT user_id, current_streak_days, best_streak_days, shelters_available, last_scored_date
		FROM user_streaks
		WHERE current_streak_days > 0 AND last_scored_date <> '' AND last_scored_date < ?
		ORDER BY user_id`, before.String())
	if err != nil {
		return nil, mapErr("stale streaks", err)
	}
	defer rows.Close()

	var out []model.UserStreak
	for rows.Next() {
		s, err := scanStreak(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, mapErr("stale streaks", rows.Err())
}

func (t *sqliteTx) AddPoints(ctx context.Context, userID, seasonID string, role model.Role, delta int64, at time.Time) (model.LeagueMembership, error) {
	row := t.q.QueryRowContext(ctx, `
		INSERT INTO league_memberships (user_id, season_id, league, points, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, season_id) DO UPDATE SET points = points + excluded.points
		RETURNING user_id, season_id, league, points, role, created_at`,
		userID, seasonID, int(model.Bronze), delta, string(role), toMillis(at))
	m, err := scanMembership(row)
	if err != nil {
		return model.LeagueMembership{}, mapErr("add points", err)
	}
	return m, nil
}

func (t *sqliteTx) PutMembership(ctx context.Context, m model.LeagueMembership) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO league_memberships (user_id, season_id, league, points, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, season_id) DO UPDATE SET
			league = excluded.league, points = excluded.points, role = excluded.role`,
		m.UserID, m.SeasonID, int(m.League), m.Points, string(m.Role), toMillis(m.CreatedAt))
	return mapErr("put membership", err)
}

func (t *sqliteTx) Memberships(ctx context.Context, seasonID string) ([]model.LeagueMembership, error) {
	return listMemberships(ctx, t.q, seasonID, MembershipFilter{})
}

func (t *sqliteTx) PutLeagueChange(ctx context.Context, c model.LeagueChange, at time.Time) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO league_changes (from_season_id, to_season_id, user_id, role, from_league, to_league,
		                            points, position, cohort_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (from_season_id, user_id) DO UPDATE SET
			to_season_id = excluded.to_season_id, role = excluded.role,
			from_league = excluded.from_league, to_league = excluded.to_league,
			points = excluded.points, position = excluded.position,
			cohort_size = excluded.cohort_size, created_at = excluded.created_at`,
		c.FromSeasonID, c.ToSeasonID, c.UserID, string(c.Role), int(c.From), int(c.To),
		c.Points, c.Position, c.CohortSize, toMillis(at))
	return mapErr("put league change", err)
}

func (t *sqliteTx) CreateSeason(ctx context.Context, s model.Season) error {
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO seasons (id, status, start_date, end_date, reset_points, maintain_leagues, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, string(s.Status), s.StartDate.String(), s.EndDate.String(), s.ResetPoints, s.MaintainLeagues, toMillis(created))
	if isConstraint(err) {
		if s.Status == model.SeasonActive {
			return ErrAlreadyActive
		}
		return ErrSeasonExists
	}
	return mapErr("create season", err)
}

func (t *sqliteTx) Season(ctx context.Context, id string) (model.Season, error) {
	return getSeason(ctx, t.q, id)
}

func (t *sqliteTx) ActiveSeasons(ctx context.Context) ([]model.Season, error) {
	return listSeasons(ctx, t.q, model.SeasonActive)
}

func (t *sqliteTx) SetSeasonStatus(ctx context.Context, id string, status model.SeasonStatus) error {
	res, err := t.q.ExecContext(ctx, `UPDATE seasons SET status = ? WHERE id = ?`, string(status), id)
	if isConstraint(err) {
		return ErrAlreadyActive
	}
	if err != nil {
		return mapErr("set season status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr("set season status", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// shared queries

func eventExists(ctx context.Context, q querier, sourceKey string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM merit_events WHERE source_key = ?`, sourceKey).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapErr("event exists", err)
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStreak(r scanner) (model.UserStreak, error) {
	var (
		s    model.UserStreak
		last string
	)
	if err := r.Scan(&s.UserID, &s.CurrentStreakDays, &s.BestStreakDays, &s.SheltersAvailable, &last); err != nil {
		return model.UserStreak{}, err
	}
	d, err := model.ParseDate(last)
	if err != nil {
		return model.UserStreak{}, fmt.Errorf("streak of %s: %w", s.UserID, err)
	}
	s.LastScoredDate = d
	return s, nil
}

func getStreak(ctx context.Context, q querier, userID string) (model.UserStreak, error) {
	row := q.QueryRowContext(ctx, `
		SELECT user_id, current_streak_days, best_streak_days, shelters_available, last_scored_date
		FROM user_streaks WHERE user_id = ?`, userID)
	s, err := scanStreak(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserStreak{UserID: userID}, nil
	}
	if err != nil {
		return model.UserStreak{}, mapErr("streak", err)
	}
	return s, nil
}

func scanSeason(r scanner) (model.Season, error) {
	var (
		s          model.Season
		start, end string
		created    int64
	)
	if err := r.Scan(&s.ID, &s.Status, &start, &end, &s.ResetPoints, &s.MaintainLeagues, &created); err != nil {
		return model.Season{}, err
	}
	var err error
	if s.StartDate, err = model.ParseDate(start); err != nil {
		return model.Season{}, err
	}
	if s.EndDate, err = model.ParseDate(end); err != nil {
		return model.Season{}, err
	}
	s.CreatedAt = fromMillis(created)
	return s, nil
}

const seasonColumns = `id, status, start_date, end_date, reset_points, maintain_leagues, created_at`

func getSeason(ctx context.Context, q querier, id string) (model.Season, error) {
	s, err := scanSeason(q.QueryRowContext(ctx, `SELECT `+seasonColumns+` FROM seasons WHERE id = ?`, id))
	if err != nil {
		return model.Season{}, mapErr("season", err)
	}
	return s, nil
}

func listSeasons(ctx context.Context, q querier, status model.SeasonStatus) ([]model.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY start_date, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("seasons", err)
	}
	defer rows.Close()

	var out []model.Season
	for rows.Next() {
		s, err := scanSeason(rows)
		if err != nil {
			return nil, mapErr("scan season", err)
		}
		out = append(out, s)
	}
	return out, mapErr("seasons", rows.Err())
}

func scanMembership(r scanner) (model.LeagueMembership, error) {
	var (
		m       model.LeagueMembership
		league  int
		created int64
	)
	if err := r.Scan(&m.UserID, &m.SeasonID, &league, &m.Points, &m.Role, &created); err != nil {
		return model.LeagueMembership{}, err
	}
	m.League = model.League(league)
	m.CreatedAt = fromMillis(created)
	return m, nil
}

func listMemberships(ctx context.Context, q querier, seasonID string, f MembershipFilter) ([]model.LeagueMembership, error) {
	query := `SELECT user_id, season_id, league, points, role, created_at
		FROM league_memberships WHERE season_id = ?`
	args := []any{seasonID}
	if f.Role != nil {
		query += ` AND role = ?`
		args = append(args, string(*f.Role))
	}
	if f.League != nil {
		query += ` AND league = ?`
		args = append(args, int(*f.League))
	}
	query += ` ORDER BY points DESC, created_at ASC, user_id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("memberships", err)
	}
	defer rows.Close()

	var out []model.LeagueMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, mapErr("scan membership", err)
		}
		out = append(out, m)
	}
	return out, mapErr("memberships", rows.Err())
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
