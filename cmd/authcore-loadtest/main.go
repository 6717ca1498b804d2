// Command authcore-loadtest measures Engine throughput for logins, token
// checks and rate-limit decisions against Redis (or miniredis) and the
// in-memory store.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/notify"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/storage"
	"github.com/MrEthical07/authcore/storage/memory"
)

const loadPassword = "load-test-password"

type subjectState struct {
	email string
	token atomic.Value
}

func main() {
	var (
		subjects    = flag.Int("subjects", 2000, "number of subjects to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *subjects <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "subjects, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte(uuid.NewString() + uuid.NewString())
	cfg.Password.Argon2 = password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	cfg.Password.UpgradeOnLogin = false
	cfg.RateLimit.Default = authcore.RatePolicy{Limit: 1 << 30, Window: time.Minute}

	store := memory.New()
	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithStore(store).
		WithSender(notify.SenderFunc(func(context.Context, notify.Message) error { return nil })).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states, err := seed(ctx, store, cfg.Password.Argon2, *subjects)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	loginStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		st := states[r.Intn(len(states))]
		token, err := engine.Login(ctx, st.email, loadPassword)
		if err == nil {
			st.token.Store(token)
		}
		return err
	})
	authStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		st := states[r.Intn(len(states))]
		token, _ := st.token.Load().(string)
		if token == "" {
			return authcore.ErrTokenRequired
		}
		_, err := engine.Authenticate(ctx, token)
		return err
	})
	rateStats := runPhase(*ops, *concurrency, func(_ *rand.Rand, i int) error {
		ipCtx := authcore.WithClientIP(ctx, fmt.Sprintf("10.0.%d.%d", (i/256)%256, i%256))
		_, err := engine.CheckRateLimit(ipCtx, "loadtest", "")
		return err
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("authenticate", authStats)
	printStats("ratelimit", rateStats)
	if engine.RateLimitDegraded() {
		fmt.Println("warning: rate limiter ran in-process fallback")
	}
}

// seed inserts verified subjects sharing one precomputed hash.
func seed(ctx context.Context, store storage.Store, pc password.Config, n int) ([]*subjectState, error) {
	hasher, err := password.NewHasher(pc)
	if err != nil {
		return nil, err
	}
	hash, err := hasher.Hash(loadPassword)
	if err != nil {
		return nil, err
	}

	fmt.Printf("seeding %d subjects...\n", n)
	start := time.Now()
	now := time.Now().UTC()
	states := make([]*subjectState, n)
	for i := range states {
		email := fmt.Sprintf("load-%d@example.com", i)
		sub := &storage.Subject{
			ID:            uuid.NewString(),
			Email:         email,
			EmailVerified: true,
			Role:          storage.DefaultRole,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		acc := &storage.Account{
			ID:           uuid.NewString(),
			ProviderID:   storage.CredentialsProvider,
			AccountID:    sub.ID,
			SubjectID:    sub.ID,
			Type:         storage.AccountCredentials,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := store.CreateSubjectWithAccount(ctx, sub, acc); err != nil {
			return nil, err
		}
		states[i] = &subjectState{email: email}
	}
	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))
	return states, nil
}

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
