package sequence

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"studentslife/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// CodeLength is the length of every redemption code.
const CodeLength = 12

// seqWidth characters of every code come from the Redis sequence; the rest is
// random so a code cannot be guessed from its neighbours.
const seqWidth = 4

const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const seqSpace = 36 * 36 * 36 * 36

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

type Generator interface {
	// NextRedemptionCode returns a fresh 12 character [A-Z0-9] code.
	NextRedemptionCode(ctx context.Context) (string, error)
}

type RedisGenerator struct {
	rdb *redis.Client
	now func() time.Time
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisGenerator(p Params) Generator {
	return &RedisGenerator{
		rdb: p.Redis,
		now: time.Now,
	}
}

func (g *RedisGenerator) NextRedemptionCode(ctx context.Context) (string, error) {
	today := g.now().UTC().Format("060102")
	key := rediskey.BuildRedemptionSequenceKey(today)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		// uniqueness is still enforced by the store, only ordering is lost
		zap.L().Warn("redemption sequence unavailable, issuing random code", zap.String("key", key), zap.Error(err))
		return RandomAlphaNumeric(CodeLength)
	}

	if seq == 1 {
		_ = g.rdb.Expire(ctx, key, 48*time.Hour).Err()
	}

	return formatCode(seq)
}

// formatCode spreads consecutive codes over a base36 bucket taken from the
// sequence, followed by a random tail.
func formatCode(seq int64) (string, error) {
	bucket := strings.ToUpper(strconv.FormatInt(seq%seqSpace, 36))
	bucket = strings.Repeat("0", seqWidth-len(bucket)) + bucket

	tail, err := RandomAlphaNumeric(CodeLength - seqWidth)
	if err != nil {
		return "", err
	}
	return bucket + tail, nil
}

// RandomGenerator produces fully random codes and needs no Redis.
type RandomGenerator struct{}

func (RandomGenerator) NextRedemptionCode(ctx context.Context) (string, error) {
	return RandomAlphaNumeric(CodeLength)
}

func RandomAlphaNumeric(n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		b[i] = alphabet[num.Int64()]
	}
	return string(b), nil
}
