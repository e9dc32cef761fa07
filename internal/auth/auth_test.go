package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/neonverse/gamestore-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.User{}))
	return NewService(db, "test-secret", 30*24*time.Hour), db
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)

	registered, err := svc.Register(RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, types.RoleUser, registered.Role)
	assert.NotEmpty(t, registered.Token)

	logged, err := svc.Login(LoginRequest{Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, logged.UserID)

	claims, err := svc.ValidateToken(logged.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, types.RoleUser, claims.Role)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(RegisterRequest{Username: "alice", Email: "a@example.com", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.Register(RegisterRequest{Username: "alice2", Email: "a@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterRejectsSuperadminRole(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(RegisterRequest{
		Username: "sneaky",
		Email:    "s@example.com",
		Password: "hunter22",
		Role:     types.RoleSuperAdmin,
	})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(RegisterRequest{Username: "alice", Email: "a@example.com", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.Login(LoginRequest{Email: "a@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(LoginRequest{Email: "nobody@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginBannedAccount(t *testing.T) {
	svc, db := newTestService(t)

	registered, err := svc.Register(RegisterRequest{Username: "alice", Email: "a@example.com", Password: "hunter22"})
	require.NoError(t, err)

	require.NoError(t, db.Model(&types.User{}).
		Where("user_id = ?", registered.UserID).
		Update("is_banned", true).Error)

	_, err = svc.Login(LoginRequest{Email: "a@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, types.ErrBanned)
}

func TestToggleBan(t *testing.T) {
	svc, _ := newTestService(t)

	registered, err := svc.Register(RegisterRequest{Username: "alice", Email: "a@example.com", Password: "hunter22"})
	require.NoError(t, err)

	banned, err := svc.ToggleBan(types.RoleSuperAdmin, registered.UserID)
	require.NoError(t, err)
	assert.True(t, banned.IsBanned)

	unbanned, err := svc.ToggleBan(types.RoleSuperAdmin, registered.UserID)
	require.NoError(t, err)
	assert.False(t, unbanned.IsBanned)

	_, err = svc.ToggleBan(types.RoleAdmin, registered.UserID)
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestToggleBanProtectsSuperadmin(t *testing.T) {
	svc, db := newTestService(t)

	require.NoError(t, db.Create(&types.User{
		UserID: "USR_owner", Username: "owner", Email: "owner@example.com",
		Role: types.RoleSuperAdmin,
	}).Error)

	_, err := svc.ToggleBan(types.RoleSuperAdmin, "USR_owner")
	assert.ErrorIs(t, err, types.ErrForbidden)
}
