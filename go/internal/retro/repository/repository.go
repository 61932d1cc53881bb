package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/retroboard/go/internal/dbconfig"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro"
	"github.com/mcdev12/retroboard/go/internal/sqlutil"
)

// DB is what the repository needs from a pgx pool or connection.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository implements retro.Store on Postgres.
type Repository struct {
	db DB
}

var _ retro.Store = (*Repository)(nil)

// NewRepository creates a new retro repository
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// NewPool opens a pgx pool using the given database config.
func NewPool(ctx context.Context, cfg dbconfig.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

const boardColumns = `id, project_id, name, template, timer_duration_sec, vote_limit,
	is_anonymous, timer_running, timer_started_at, created_by, created_at, updated_at`

const columnColumns = `id, board_id, name, position, color, created_at`

const noteColumns = `id, column_id, author_id, text, color, position, is_anonymous, created_at, updated_at`

const actionItemColumns = `id, board_id, note_id, text, assignee_id, issue_id, is_done, created_at, updated_at`

func (r *Repository) CreateBoard(ctx context.Context, params retro.CreateBoardParams) (*models.Board, error) {
	var board *models.Board
	err := sqlutil.RunTx(ctx, r.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO retro_boards (id, project_id, name, template, timer_duration_sec, vote_limit, is_anonymous, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+boardColumns,
			uuid.New(), params.ProjectID, params.Name, string(params.Template),
			params.TimerDurationSec, params.VoteLimit, params.IsAnonymous, params.CreatedBy,
		)
		b, err := scanBoard(row)
		if err != nil {
			return err
		}
		for i, col := range params.Columns {
			if _, err := tx.Exec(ctx, `
				INSERT INTO retro_columns (id, board_id, name, position, color)
				VALUES ($1, $2, $3, $4, $5)`,
				uuid.New(), b.ID, col.Name, i, col.Color,
			); err != nil {
				return fmt.Errorf("failed to insert column %q: %w", col.Name, err)
			}
		}
		board = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create board: %w", err)
	}
	return board, nil
}

func (r *Repository) GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	row := r.db.QueryRow(ctx, `SELECT `+boardColumns+` FROM retro_boards WHERE id = $1`, id)
	board, err := scanBoard(row)
	if err != nil {
		return nil, translate(err, "board")
	}
	return board, nil
}

func (r *Repository) UpdateBoard(ctx context.Context, id uuid.UUID, params retro.UpdateBoardParams) (*models.Board, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE retro_boards SET
			name = COALESCE($2, name),
			timer_duration_sec = COALESCE($3, timer_duration_sec),
			vote_limit = COALESCE($4, vote_limit),
			is_anonymous = COALESCE($5, is_anonymous),
			updated_at = now()
		WHERE id = $1
		RETURNING `+boardColumns,
		id, params.Name, params.TimerDurationSec, params.VoteLimit, params.IsAnonymous,
	)
	board, err := scanBoard(row)
	if err != nil {
		return nil, translate(err, "board")
	}
	return board, nil
}

func (r *Repository) SetBoardTimer(ctx context.Context, id uuid.UUID, running bool, startedAt *time.Time) (*models.Board, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE retro_boards SET timer_running = $2, timer_started_at = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+boardColumns,
		id, running, sqlutil.ToTimestamptz(startedAt),
	)
	board, err := scanBoard(row)
	if err != nil {
		return nil, translate(err, "board")
	}
	return board, nil
}

func (r *Repository) DeleteBoard(ctx context.Context, id uuid.UUID) error {
	return r.deleteOne(ctx, "board", `DELETE FROM retro_boards WHERE id = $1`, id)
}

func (r *Repository) CreateColumn(ctx context.Context, params retro.CreateColumnParams) (*models.Column, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO retro_columns (id, board_id, name, position, color)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+columnColumns,
		uuid.New(), params.BoardID, params.Name, params.Position, params.Color,
	)
	col, err := scanColumn(row)
	if err != nil {
		return nil, translate(err, "board")
	}
	return col, nil
}

func (r *Repository) GetColumn(ctx context.Context, id uuid.UUID) (*models.Column, error) {
	row := r.db.QueryRow(ctx, `SELECT `+columnColumns+` FROM retro_columns WHERE id = $1`, id)
	col, err := scanColumn(row)
	if err != nil {
		return nil, translate(err, "column")
	}
	return col, nil
}

func (r *Repository) ListColumns(ctx context.Context, boardID uuid.UUID) ([]models.Column, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+columnColumns+` FROM retro_columns
		WHERE board_id = $1
		ORDER BY position, created_at`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	cols, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Column, error) {
		col, err := scanColumn(row)
		if err != nil {
			return models.Column{}, err
		}
		return *col, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan columns: %w", err)
	}
	return cols, nil
}

func (r *Repository) CreateNote(ctx context.Context, params retro.CreateNoteParams) (*models.Note, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO retro_notes (id, column_id, author_id, text, color, position, is_anonymous)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+noteColumns,
		uuid.New(), params.ColumnID, params.AuthorID, params.Text,
		sqlutil.ToText(params.Color), params.Position, params.IsAnonymous,
	)
	note, err := scanNote(row)
	if err != nil {
		return nil, translate(err, "column")
	}
	return note, nil
}

func (r *Repository) GetNote(ctx context.Context, id uuid.UUID) (*models.Note, error) {
	row := r.db.QueryRow(ctx, `SELECT `+noteColumns+` FROM retro_notes WHERE id = $1`, id)
	note, err := scanNote(row)
	if err != nil {
		return nil, translate(err, "note")
	}
	return note, nil
}

func (r *Repository) UpdateNote(ctx context.Context, id uuid.UUID, params retro.UpdateNoteParams) (*models.Note, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE retro_notes SET
			text = COALESCE($2, text),
			position = COALESCE($3, position),
			column_id = COALESCE($4, column_id),
			updated_at = clock_timestamp()
		WHERE id = $1
		RETURNING `+noteColumns,
		id, params.Text, params.Position, sqlutil.ToNullUUID(params.ColumnID),
	)
	note, err := scanNote(row)
	if err != nil {
		return nil, translate(err, "note")
	}
	return note, nil
}

func (r *Repository) DeleteNote(ctx context.Context, id uuid.UUID) error {
	return r.deleteOne(ctx, "note", `DELETE FROM retro_notes WHERE id = $1`, id)
}

func (r *Repository) ListNotes(ctx context.Context, boardID uuid.UUID) ([]models.Note, error) {
	rows, err := r.db.Query(ctx, `
		SELECT n.id, n.column_id, n.author_id, n.text, n.color, n.position, n.is_anonymous, n.created_at, n.updated_at
		FROM retro_notes n
		JOIN retro_columns c ON c.id = n.column_id
		WHERE c.board_id = $1
		ORDER BY c.position, n.column_id, n.position, n.created_at, n.id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	notes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Note, error) {
		note, err := scanNote(row)
		if err != nil {
			return models.Note{}, err
		}
		return *note, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan notes: %w", err)
	}
	return notes, nil
}

func (r *Repository) MaxNotePosition(ctx context.Context, columnID uuid.UUID) (int, bool, error) {
	var highest pgtype.Int4
	if err := r.db.QueryRow(ctx, `SELECT MAX(position) FROM retro_notes WHERE column_id = $1`, columnID).Scan(&highest); err != nil {
		return 0, false, fmt.Errorf("failed to read max note position: %w", err)
	}
	if !highest.Valid {
		return 0, false, nil
	}
	return int(highest.Int32), true, nil
}

func (r *Repository) GetVote(ctx context.Context, noteID uuid.UUID, userID string) (*models.Vote, error) {
	var vote models.Vote
	err := r.db.QueryRow(ctx, `
		SELECT note_id, user_id, created_at FROM retro_votes
		WHERE note_id = $1 AND user_id = $2`, noteID, userID,
	).Scan(&vote.NoteID, &vote.UserID, &vote.CreatedAt)
	if err != nil {
		return nil, translate(err, "vote")
	}
	return &vote, nil
}

func (r *Repository) CreateVote(ctx context.Context, noteID uuid.UUID, userID string) (*models.Vote, error) {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO retro_votes (note_id, user_id) VALUES ($1, $2)
		ON CONFLICT (note_id, user_id) DO NOTHING`, noteID, userID,
	); err != nil {
		return nil, translate(err, "note")
	}
	return r.GetVote(ctx, noteID, userID)
}

func (r *Repository) DeleteVote(ctx context.Context, noteID uuid.UUID, userID string) error {
	return r.deleteOne(ctx, "vote", `DELETE FROM retro_votes WHERE note_id = $1 AND user_id = $2`, noteID, userID)
}

func (r *Repository) CountUserVotes(ctx context.Context, boardID uuid.UUID, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM retro_votes v
		JOIN retro_notes n ON n.id = v.note_id
		JOIN retro_columns c ON c.id = n.column_id
		WHERE c.board_id = $1 AND v.user_id = $2`, boardID, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count user votes: %w", err)
	}
	return count, nil
}

func (r *Repository) CountNoteVotes(ctx context.Context, boardID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT v.note_id, COUNT(*)
		FROM retro_votes v
		JOIN retro_notes n ON n.id = v.note_id
		JOIN retro_columns c ON c.id = n.column_id
		WHERE c.board_id = $1
		GROUP BY v.note_id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to count note votes: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var noteID uuid.UUID
		var count int
		if err := rows.Scan(&noteID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan vote count: %w", err)
		}
		counts[noteID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vote counts: %w", err)
	}
	return counts, nil
}

func (r *Repository) CreateActionItem(ctx context.Context, params retro.CreateActionItemParams) (*models.ActionItem, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO retro_action_items (id, board_id, note_id, text, assignee_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+actionItemColumns,
		uuid.New(), params.BoardID, sqlutil.ToNullUUID(params.NoteID), params.Text, sqlutil.ToText(params.AssigneeID),
	)
	item, err := scanActionItem(row)
	if err != nil {
		return nil, translate(err, "board")
	}
	return item, nil
}

func (r *Repository) GetActionItem(ctx context.Context, id uuid.UUID) (*models.ActionItem, error) {
	row := r.db.QueryRow(ctx, `SELECT `+actionItemColumns+` FROM retro_action_items WHERE id = $1`, id)
	item, err := scanActionItem(row)
	if err != nil {
		return nil, translate(err, "action item")
	}
	return item, nil
}

func (r *Repository) UpdateActionItem(ctx context.Context, id uuid.UUID, params retro.UpdateActionItemParams) (*models.ActionItem, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE retro_action_items SET
			text = COALESCE($2, text),
			assignee_id = CASE WHEN $3::text IS NULL THEN assignee_id ELSE NULLIF($3::text, '') END,
			issue_id = COALESCE($4, issue_id),
			is_done = COALESCE($5, is_done),
			updated_at = clock_timestamp()
		WHERE id = $1
		RETURNING `+actionItemColumns,
		id, params.Text, sqlutil.ToText(params.AssigneeID), sqlutil.ToText(params.IssueID), params.IsDone,
	)
	item, err := scanActionItem(row)
	if err != nil {
		return nil, translate(err, "action item")
	}
	return item, nil
}

func (r *Repository) DeleteActionItem(ctx context.Context, id uuid.UUID) error {
	return r.deleteOne(ctx, "action item", `DELETE FROM retro_action_items WHERE id = $1`, id)
}

func (r *Repository) ListActionItems(ctx context.Context, boardID uuid.UUID) ([]models.ActionItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+actionItemColumns+` FROM retro_action_items
		WHERE board_id = $1
		ORDER BY created_at, id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list action items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ActionItem, error) {
		item, err := scanActionItem(row)
		if err != nil {
			return models.ActionItem{}, err
		}
		return *item, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan action items: %w", err)
	}
	return items, nil
}

func (r *Repository) deleteOne(ctx context.Context, kind, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return retro.NotFoundError(kind)
	}
	return nil
}

// translate maps driver errors onto the retro taxonomy. A foreign key
// violation means the referenced parent (named by kind) is gone.
func translate(err error, kind string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return retro.NotFoundError(kind)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return retro.NotFoundError(kind)
	}
	return fmt.Errorf("%s query failed: %w", kind, err)
}

func scanBoard(row pgx.Row) (*models.Board, error) {
	var b models.Board
	var template string
	var startedAt pgtype.Timestamptz
	if err := row.Scan(
		&b.ID, &b.ProjectID, &b.Name, &template, &b.TimerDurationSec, &b.VoteLimit,
		&b.IsAnonymous, &b.TimerRunning, &startedAt, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Template = models.BoardTemplate(template)
	b.TimerStartedAt = sqlutil.FromTimestamptz(startedAt)
	return &b, nil
}

func scanColumn(row pgx.Row) (*models.Column, error) {
	var c models.Column
	if err := row.Scan(&c.ID, &c.BoardID, &c.Name, &c.Position, &c.Color, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanNote(row pgx.Row) (*models.Note, error) {
	var n models.Note
	var color pgtype.Text
	if err := row.Scan(
		&n.ID, &n.ColumnID, &n.AuthorID, &n.Text, &color, &n.Position, &n.IsAnonymous, &n.CreatedAt, &n.UpdatedAt,
	); err != nil {
		return nil, err
	}
	n.Color = sqlutil.FromText(color)
	return &n, nil
}

func scanActionItem(row pgx.Row) (*models.ActionItem, error) {
	var a models.ActionItem
	var noteID uuid.NullUUID
	var assignee, issue pgtype.Text
	if err := row.Scan(
		&a.ID, &a.BoardID, &noteID, &a.Text, &assignee, &issue, &a.IsDone, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.NoteID = sqlutil.FromNullUUID(noteID)
	a.AssigneeID = sqlutil.FromText(assignee)
	a.IssueID = sqlutil.FromText(issue)
	return &a, nil
}
