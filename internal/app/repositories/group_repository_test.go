package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoria-app/memoria/internal/app/models"
)

// fakeRow implements pgx.Row
type fakeRow struct {
	scanFn func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error {
	return r.scanFn(dest...)
}

// fakeRows implements pgx.Rows. Next always reports false so the
// iteration outcome is controlled entirely by err.
type fakeRows struct {
	err error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool                                   { return false }
func (r *fakeRows) Scan(dest ...any) error                       { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

// fakeTx implements pgx.Tx and records the statements run inside the
// transaction so tests can assert on the commit/rollback outcome.
type fakeTx struct {
	queryRowFn func(sql string, args []any) pgx.Row
	execFn     func(sql string, args []any) (pgconn.CommandTag, error)

	queryRowSQL []string
	execSQL     []string
	execArgs    [][]any
	committed   bool
	rolledBack  bool
}

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("Begin not expected") }

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("CopyFrom not expected")
}

func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("SendBatch not expected")
}

func (t *fakeTx) LargeObjects() pgx.LargeObjects { panic("LargeObjects not expected") }

func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("Prepare not expected")
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execSQL = append(t.execSQL, sql)
	t.execArgs = append(t.execArgs, args)
	if t.execFn != nil {
		return t.execFn(sql, args)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("Query not expected")
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	t.queryRowSQL = append(t.queryRowSQL, sql)
	return t.queryRowFn(sql, args)
}

func (t *fakeTx) Conn() *pgx.Conn { return nil }

// fakeDB implements groupQuerier
type fakeDB struct {
	tx       *fakeTx
	beginErr error
	queryFn  func(sql string, args []any) (pgx.Rows, error)
	querySQL []string
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	return d.tx, nil
}

func (d *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.querySQL = append(d.querySQL, sql)
	return d.queryFn(sql, args)
}

func (d *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("QueryRow not expected")
}

func (d *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	panic("Exec not expected")
}

func newTestGroupRepository(db groupQuerier) *GroupRepository {
	return &GroupRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func TestCreateWithOwner_CommitsBothRows(t *testing.T) {
	tx := &fakeTx{
		queryRowFn: func(sql string, args []any) pgx.Row {
			return fakeRow{scanFn: func(dest ...any) error {
				*dest[0].(*int64) = 77
				return nil
			}}
		},
	}
	repo := newTestGroupRepository(&fakeDB{tx: tx})

	group := &models.Group{Name: "Viagem 2026", CreatedBy: 5}
	err := repo.CreateWithOwner(context.Background(), group)
	require.NoError(t, err)

	assert.Equal(t, int64(77), group.ID)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)

	require.Len(t, tx.queryRowSQL, 1)
	assert.Contains(t, tx.queryRowSQL[0], "INSERT INTO groups")

	require.Len(t, tx.execSQL, 1)
	assert.Contains(t, tx.execSQL[0], "INSERT INTO group_members")
	assert.Equal(t, int64(77), tx.execArgs[0][0])
	assert.Equal(t, int64(5), tx.execArgs[0][1])
	assert.Equal(t, models.RoleOwner, tx.execArgs[0][2])
}

func TestCreateWithOwner_RollsBackWhenMembershipInsertFails(t *testing.T) {
	tx := &fakeTx{
		queryRowFn: func(sql string, args []any) pgx.Row {
			return fakeRow{scanFn: func(dest ...any) error {
				*dest[0].(*int64) = 77
				return nil
			}}
		},
		execFn: func(sql string, args []any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, errors.New("connection reset")
		},
	}
	repo := newTestGroupRepository(&fakeDB{tx: tx})

	group := &models.Group{Name: "Viagem 2026", CreatedBy: 5}
	err := repo.CreateWithOwner(context.Background(), group)
	require.Error(t, err)

	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
	assert.Zero(t, group.ID)
}

func TestCreateWithOwner_RollsBackWhenGroupInsertFails(t *testing.T) {
	tx := &fakeTx{
		queryRowFn: func(sql string, args []any) pgx.Row {
			return fakeRow{scanFn: func(dest ...any) error {
				return errors.New("connection reset")
			}}
		},
	}
	repo := newTestGroupRepository(&fakeDB{tx: tx})

	err := repo.CreateWithOwner(context.Background(), &models.Group{Name: "Viagem 2026", CreatedBy: 5})
	require.Error(t, err)

	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
	assert.Empty(t, tx.execSQL, "membership insert should not run after a failed group insert")
}

func TestListByUser_DeduplicatesCreatorAndMember(t *testing.T) {
	db := &fakeDB{queryFn: func(sql string, args []any) (pgx.Rows, error) {
		return &fakeRows{}, nil
	}}
	repo := newTestGroupRepository(db)

	_, err := repo.ListByUser(context.Background(), 5)
	require.NoError(t, err)

	// The creator of a joined group matches both branches of the OR;
	// DISTINCT keeps such groups to a single row.
	require.Len(t, db.querySQL, 1)
	assert.Contains(t, db.querySQL[0], "DISTINCT")
	assert.Contains(t, db.querySQL[0], "g.created_by =")
	assert.Contains(t, db.querySQL[0], "gm.user_id =")
	assert.Contains(t, db.querySQL[0], "ORDER BY g.created_at DESC")
}

func TestListPublic_ReportsMidStreamFailure(t *testing.T) {
	db := &fakeDB{queryFn: func(sql string, args []any) (pgx.Rows, error) {
		return &fakeRows{err: errors.New("unexpected EOF")}, nil
	}}
	repo := newTestGroupRepository(db)

	groups, err := repo.ListPublic(context.Background(), nil, 20)
	require.Error(t, err)
	assert.Nil(t, groups)
}
