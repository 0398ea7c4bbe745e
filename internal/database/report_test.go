package database

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	ctx := context.Background()

	t.Run("counts researchers publications and decisions", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("FROM researchers").
			WillReturnRows(pgxmock.NewRows([]string{"count", "active"}).AddRow(int64(12), int64(10)))
		mock.ExpectQuery("FROM publications GROUP BY match_status").
			WillReturnRows(pgxmock.NewRows([]string{"match_status", "count"}).
				AddRow("pending", int64(4)).
				AddRow("resolved", int64(20)))
		mock.ExpectQuery("FROM match_decisions GROUP BY review_status").
			WillReturnRows(pgxmock.NewRows([]string{"review_status", "count"}).
				AddRow("none", int64(31)).
				AddRow("pending", int64(3)).
				AddRow("accepted", int64(2)))

		report, err := Report(ctx, mock)
		require.NoError(t, err)
		assert.EqualValues(t, 12, report.Researchers)
		assert.EqualValues(t, 10, report.ActiveResearchers)
		assert.Equal(t, map[string]int64{"pending": 4, "resolved": 20}, report.Publications)
		assert.EqualValues(t, 3, report.ReviewQueue)
		assert.EqualValues(t, 2, report.Decisions["accepted"])
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty tables report zero", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("FROM researchers").
			WillReturnRows(pgxmock.NewRows([]string{"count", "active"}).AddRow(int64(0), int64(0)))
		mock.ExpectQuery("FROM publications").WillReturnRows(pgxmock.NewRows([]string{"match_status", "count"}))
		mock.ExpectQuery("FROM match_decisions").WillReturnRows(pgxmock.NewRows([]string{"review_status", "count"}))

		report, err := Report(ctx, mock)
		require.NoError(t, err)
		assert.Zero(t, report.ReviewQueue)
		assert.Empty(t, report.Decisions)
	})

	t.Run("missing table surfaces the failing count", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("FROM researchers").
			WillReturnRows(pgxmock.NewRows([]string{"count", "active"}).AddRow(int64(1), int64(1)))
		mock.ExpectQuery("FROM publications").
			WillReturnError(errors.New(`relation "publications" does not exist`))

		_, err := Report(ctx, mock)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "count publications")
	})
}
