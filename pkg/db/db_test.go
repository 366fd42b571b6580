package db

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"

	"smallbiznis-referral/pkg/config"
)

func TestDialectSelection(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Host = "localhost"
	cfg.Database.Port = "5432"
	cfg.Database.DBNAME = "referral"

	d, err := Dialect(cfg)
	require.NoError(t, err)
	require.IsType(t, &postgres.Dialector{}, d)
	require.Equal(t, "referral", getDBNameFromDialector(d))

	cfg.Database.Type = "mysql"
	d, err = Dialect(cfg)
	require.NoError(t, err)
	require.IsType(t, &mysql.Dialector{}, d)
	require.Equal(t, "referral", getDBNameFromDialector(d))

	cfg.Database.Type = "sqlite"
	cfg.Database.DSN = ":memory:"
	d, err = Dialect(cfg)
	require.NoError(t, err)
	require.IsType(t, &sqlite.Dialector{}, d)

	cfg.Database.Type = "oracle"
	_, err = Dialect(cfg)
	require.Error(t, err)
}

func TestExtractDBNameFromDSN(t *testing.T) {
	require.Equal(t, "app", extractDBNameFromDSN("host=db user=x dbname=app sslmode=disable"))
	require.Equal(t, "shop", extractDBNameFromDSN("u:p@tcp(db:3306)/shop?parseTime=True"))
	require.Equal(t, "unknown", extractDBNameFromDSN(""))
}
