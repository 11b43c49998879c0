package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedBackup plants a fake backup file with a controlled modification time.
func seedBackup(t *testing.T, name string, age time.Duration) string {
	t.Helper()
	path := GetUserConfigPath() + BackupSuffix + "." + name
	require.NoError(t, os.WriteFile(path, []byte("old: true\n"), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestBackupUserConfig_NoConfigReturnsEmpty(t *testing.T) {
	isolateUserConfig(t)

	path, err := BackupUserConfig()

	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupUserConfig_CreatesTimestampedCopy(t *testing.T) {
	// Given: an existing user config
	xdgDir := isolateUserConfig(t)
	writeUserConfig(t, xdgDir, "log:\n  level: debug\n")

	// When: backing it up
	backupPath, err := BackupUserConfig()

	// Then: a .bak copy with identical content exists
	require.NoError(t, err)
	assert.Contains(t, backupPath, BackupSuffix+".")

	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, "log:\n  level: debug\n", string(data))
}

func TestBackupUserConfig_PrunesOldBackups(t *testing.T) {
	// Given: more historical backups than MaxBackups
	xdgDir := isolateUserConfig(t)
	writeUserConfig(t, xdgDir, "log:\n  level: info\n")
	for i := 1; i <= MaxBackups+2; i++ {
		seedBackup(t, time.Now().Add(-time.Duration(i)*time.Hour).Format("20060102-150405"),
			time.Duration(i)*time.Hour)
	}

	// When: creating one more backup
	_, err := BackupUserConfig()
	require.NoError(t, err)

	// Then: only the newest MaxBackups survive
	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
}

func TestListUserConfigBackups_NewestFirst(t *testing.T) {
	xdgDir := isolateUserConfig(t)
	writeUserConfig(t, xdgDir, "log:\n  level: info\n")
	oldest := seedBackup(t, "20240101-080000", 3*time.Hour)
	middle := seedBackup(t, "20240101-090000", 2*time.Hour)
	newest := seedBackup(t, "20240101-100000", time.Hour)

	backups, err := ListUserConfigBackups()

	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, newest, backups[0])
	assert.Equal(t, middle, backups[1])
	assert.Equal(t, oldest, backups[2])
}

func TestListUserConfigBackups_NoConfigDirReturnsNil(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "missing"))

	backups, err := ListUserConfigBackups()

	require.NoError(t, err)
	assert.Nil(t, backups)
}

func TestRestoreUserConfig(t *testing.T) {
	// Given: a backup of an earlier config, then an edited current config
	xdgDir := isolateUserConfig(t)
	writeUserConfig(t, xdgDir, "log:\n  level: debug\n")
	backupPath, err := BackupUserConfig()
	require.NoError(t, err)
	writeUserConfig(t, xdgDir, "log:\n  level: error\n")

	// When: restoring the backup
	require.NoError(t, RestoreUserConfig(backupPath))

	// Then: the earlier content is back
	data, err := os.ReadFile(GetUserConfigPath())
	require.NoError(t, err)
	assert.Equal(t, "log:\n  level: debug\n", string(data))
}

func TestRestoreUserConfig_MissingBackupFails(t *testing.T) {
	isolateUserConfig(t)

	err := RestoreUserConfig("/nonexistent/config.yaml.bak.20240101-000000")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
