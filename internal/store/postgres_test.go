package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_Migrate(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS enrichment_cache").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetEntry(t *testing.T) {
	st, mock := newMockStore(t)
	written := time.Now().UTC()
	mock.ExpectQuery("SELECT key, data, match_type, confidence, written_at FROM enrichment_cache").
		WithArgs("penfolds|grange|2016").
		WillReturnRows(pgxmock.NewRows([]string{"key", "data", "match_type", "confidence", "written_at"}).
			AddRow("penfolds|grange|2016", []byte(`{"producer":"Penfolds"}`), "exact", 1.0, written))

	e, err := st.GetEntry(context.Background(), "penfolds|grange|2016")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "penfolds|grange|2016", e.Key)
	assert.JSONEq(t, `{"producer":"Penfolds"}`, string(e.Data))
	assert.Equal(t, "exact", e.MatchType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetEntry_AbsentIsNil(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery("SELECT key, data, match_type, confidence, written_at FROM enrichment_cache").
		WithArgs("missing|key|").
		WillReturnError(pgx.ErrNoRows)

	e, err := st.GetEntry(context.Background(), "missing|key|")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestPostgres_PutEntry_Upsert(t *testing.T) {
	st, mock := newMockStore(t)
	written := time.Now().UTC()
	mock.ExpectExec("INSERT INTO enrichment_cache").
		WithArgs("k|w|2020", []byte(`{}`), "exact", 1.0, written).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.PutEntry(context.Background(), &Entry{
		Key:        "k|w|2020",
		Data:       []byte(`{}`),
		MatchType:  "exact",
		Confidence: 1.0,
		WrittenAt:  written,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Keys(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery("SELECT key FROM enrichment_cache ORDER BY key").
		WillReturnRows(pgxmock.NewRows([]string{"key"}).
			AddRow("a|b|2019").
			AddRow("c|d|2020"))

	keys, err := st.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a|b|2019", "c|d|2020"}, keys)
}

func TestPostgres_DeleteEntry(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM enrichment_cache").
		WithArgs("a|b|2019").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM enrichment_cache").
		WithArgs("gone|gone|").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	existed, err := st.DeleteEntry(context.Background(), "a|b|2019")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = st.DeleteEntry(context.Background(), "gone|gone|")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestPostgres_Count(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
}
