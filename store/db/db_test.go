package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/slotsense/internal/profile"
)

func TestNewDBDriver(t *testing.T) {
	driver, err := NewDBDriver(&profile.Profile{Driver: "memory"})
	require.NoError(t, err)
	assert.NoError(t, driver.Migrate(context.Background()))
	assert.NoError(t, driver.Close())

	driver, err = NewDBDriver(&profile.Profile{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	assert.NoError(t, driver.Migrate(context.Background()))
	assert.NoError(t, driver.Close())

	_, err = NewDBDriver(&profile.Profile{Driver: "postgres"})
	assert.Error(t, err)

	_, err = NewDBDriver(&profile.Profile{Driver: "mysql"})
	assert.ErrorContains(t, err, "unknown db driver")
}
