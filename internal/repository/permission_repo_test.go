package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return gdb, mock
}

func TestPermissionListByTenantFiltersAndOrders(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewPermissionRepository(gdb)
	tenantID := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "name", "resource", "action", "tenant_id"}).
		AddRow(uuid.New().String(), "read:order", "order", "read", tenantID.String()).
		AddRow(uuid.New().String(), "read:product", "product", "read", tenantID.String())

	mock.ExpectQuery(`SELECT \* FROM "permissions" WHERE tenant_id = \$1 ORDER BY resource asc, action asc`).
		WithArgs(tenantID.String()).
		WillReturnRows(rows)

	perms, err := repo.ListByTenant(context.Background(), tenantID)
	require.NoError(t, err)
	require.Len(t, perms, 2)
	assert.Equal(t, "read:order", perms[0].Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionFindByIDIsTenantScoped(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewPermissionRepository(gdb)

	mock.ExpectQuery(`SELECT \* FROM "permissions" WHERE tenant_id = \$1 AND id = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "resource", "action", "tenant_id"}))

	_, err := repo.FindByID(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenDeleteExpired(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "refresh_tokens" WHERE expires_at < \$1`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	removed, err := repo.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	assert.NoError(t, mock.ExpectationsWereMet())
}
