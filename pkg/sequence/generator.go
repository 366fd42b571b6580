package sequence

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"smallbiznis-referral/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

type Generator interface {
	// NextReferralCodeSeq returns the next counter for a referral code prefix.
	// Codes are unique across businesses, so the counter is global per prefix.
	NextReferralCodeSeq(ctx context.Context, prefix string) (int64, error)
	NextBatchCode(ctx context.Context) (string, error)
}

type RedisGenerator struct {
	rdb *redis.Client
	now func() time.Time
}

type Params struct {
	fx.In

	Redis *redis.Client `optional:"true"`
}

func NewRedisGenerator(p Params) Generator {
	if p.Redis == nil {
		return NewMemoryGenerator()
	}
	return &RedisGenerator{
		rdb: p.Redis,
		now: time.Now,
	}
}

func (g *RedisGenerator) NextReferralCodeSeq(ctx context.Context, prefix string) (int64, error) {
	return g.rdb.Incr(ctx, rediskey.BuildSequenceKey("referral_code", prefix)).Result()
}

func (g *RedisGenerator) NextBatchCode(ctx context.Context) (string, error) {
	today := g.now().UTC().Format("060102")
	key := rediskey.BuildSequenceKey("batch", today)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}

	if seq == 1 {
		_ = g.rdb.Expire(ctx, key, 25*time.Hour).Err()
	}

	return formatBatchCode(today, seq)
}

func formatBatchCode(day string, seq int64) (string, error) {
	encoded := strings.ToUpper(strconv.FormatInt(seq, 36))
	if len(encoded) < 3 {
		encoded = strings.Repeat("0", 3-len(encoded)) + encoded
	}
	suffix, err := randomAlphaNumeric(2)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("BATCH-%s-%s%s", day, encoded, suffix), nil
}

func randomAlphaNumeric(n int) (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		b[i] = chars[num.Int64()]
	}
	return string(b), nil
}
