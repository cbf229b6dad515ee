package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/nacl/secretbox"
)

// DefaultRedisKey is the hash key holding the persisted session.
const DefaultRedisKey = "ratebeer:session"

const nonceSize = 24

// ErrSealedSecret indicates the persisted secret could not be opened with the configured key.
var ErrSealedSecret = errors.New("cannot open sealed credential secret")

// RedisPersister stores the session in a single Redis hash.
// The credential secret is sealed with NaCl secretbox before it leaves the process.
type RedisPersister struct {
	redis *redis.Client
	key   string
	seal  [32]byte
}

// NewRedisPersister creates a persister using key for sealing the secret.
// An empty redisKey selects DefaultRedisKey.
func NewRedisPersister(redisClient *redis.Client, redisKey string, sealKey [32]byte) *RedisPersister {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if redisKey == "" {
		redisKey = DefaultRedisKey
	}
	return &RedisPersister{
		redis: redisClient,
		key:   redisKey,
		seal:  sealKey,
	}
}

// ParseKey decodes a 32-byte sealing key from its hex form.
func ParseKey(hexKey string) ([32]byte, error) {
	var key [32]byte
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return key, fmt.Errorf("decode session key: %w", err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("session key must be %d bytes (got %d)", len(key), len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// Load reads the persisted session.
func (p *RedisPersister) Load(ctx context.Context) (Session, bool, error) {
	fields, err := p.redis.HGetAll(ctx, p.key).Result()
	if err != nil {
		return Session{}, false, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return Session{}, false, nil
	}

	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil {
		return Session{}, false, fmt.Errorf("parse user id: %w", err)
	}
	rateCount, err := strconv.Atoi(fields["rate_count"])
	if err != nil {
		return Session{}, false, fmt.Errorf("parse rate count: %w", err)
	}
	secret, err := p.open(fields["secret"])
	if err != nil {
		return Session{}, false, err
	}

	return Session{
		UserID:           userID,
		UserName:         fields["user_name"],
		CredentialSecret: secret,
		RateCount:        rateCount,
	}, true, nil
}

// Save writes all session fields with one HSET.
func (p *RedisPersister) Save(ctx context.Context, s Session) error {
	sealed, err := p.sealSecret(s.CredentialSecret)
	if err != nil {
		return err
	}

	err = p.redis.HSet(ctx, p.key, map[string]interface{}{
		"user_id":    strconv.FormatInt(s.UserID, 10),
		"user_name":  s.UserName,
		"secret":     sealed,
		"rate_count": strconv.Itoa(s.RateCount),
	}).Err()
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// Delete removes the persisted session.
func (p *RedisPersister) Delete(ctx context.Context) error {
	if err := p.redis.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (p *RedisPersister) sealSecret(secret string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(secret), &nonce, &p.seal)
	return base64.StdEncoding.EncodeToString(box), nil
}

func (p *RedisPersister) open(sealed string) (string, error) {
	box, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealedSecret, err)
	}
	if len(box) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: payload too short", ErrSealedSecret)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &p.seal)
	if !ok {
		return "", ErrSealedSecret
	}
	return string(plain), nil
}
