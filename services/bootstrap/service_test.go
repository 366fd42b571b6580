package bootstrap

import (
	"context"
	"testing"

	"smallbiznis-referral/pkg/config"
	"smallbiznis-referral/services/business"
	"smallbiznis-referral/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
)

func TestRunMigratesAndSeedsOnce(t *testing.T) {
	db := testutil.NewTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Database.AutoMigrate = true
	cfg.Bootstrap.OwnerID = "owner-1"
	cfg.Bootstrap.BusinessName = "Acme Dental"

	svc := NewService(ServiceParams{
		DB:         db,
		Config:     cfg,
		Businesses: business.NewService(business.ServiceParams{DB: db, Node: node}),
	})

	require.NoError(t, svc.Run(context.Background()))
	require.NoError(t, svc.Run(context.Background()))

	for _, m := range Models() {
		require.True(t, db.Migrator().HasTable(m))
	}

	var n int64
	require.NoError(t, db.Model(&business.Business{}).Where("slug = ?", "acme-dental").Count(&n).Error)
	require.EqualValues(t, 1, n)
}
