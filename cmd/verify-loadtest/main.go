// Command verify-loadtest drives concurrent captcha, send and verify calls
// through a goVerify engine and reports latency percentiles per phase.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type sessionState struct {
	key      string
	identity string
}

// codeBook keeps the last code delivered to each destination.
type codeBook struct {
	codes sync.Map
}

func (b *codeBook) Send(_ context.Context, msg goVerify.Message) error {
	b.codes.Store(msg.Destination, msg.Body)
	return nil
}

func (b *codeBook) code(destination string) string {
	v, ok := b.codes.Load(destination)
	if !ok {
		return ""
	}
	return extractCode(v.(string))
}

type textRenderer struct{}

func (textRenderer) Render(_ context.Context, text string) ([]byte, error) { return []byte(text), nil }
func (textRenderer) ContentType() string                                   { return "text/plain" }

func main() {
	var (
		sessions    = flag.Int("sessions", 10000, "number of sessions")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "vl", "session facts key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "sessions and concurrency must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  *redis.Client
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	facts := session.NewRedisFacts(client, *prefix, time.Hour, false)
	book := &codeBook{}

	cfg := goVerify.DefaultConfig()
	cfg.Verification.SendTimeout = 0
	engine, err := goVerify.New().
		WithConfig(cfg).
		WithNotifier(book).
		WithCaptchaRenderer(textRenderer{}).
		WithSessionFacts(facts).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]sessionState, *sessions)
	for i := range states {
		states[i] = sessionState{
			key:      fmt.Sprintf("sid-%d", i),
			identity: fmt.Sprintf("user%d@example.com", i),
		}
	}

	sendStats := runPhase(len(states), *concurrency, func(i int) error {
		s := states[i]
		img, err := engine.IssueCaptcha(ctx, s.key)
		if err != nil {
			return err
		}
		_, err = engine.RequestVerification(ctx, s.key, goVerify.VerificationRequest{
			Identity:     s.identity,
			CaptchaInput: img.Text,
		})
		return err
	})

	verifyStats := runPhase(len(states), *concurrency, func(i int) error {
		s := states[i]
		return engine.CheckVerification(ctx, s.key, s.identity, book.code(s.identity))
	})

	markFailures := int64(0)
	for i := 0; i < len(states) && i < 100; i++ {
		if _, ok, err := engine.Verified(ctx, states[i].key); err != nil || !ok {
			markFailures++
		}
	}

	fmt.Println("---- results ----")
	printStats("captcha+send", sendStats)
	printStats("verify", verifyStats)
	fmt.Printf("verified mark spot-check failures: %d\n", markFailures)
	snap := engine.MetricsSnapshot()
	fmt.Printf("sent=%d success=%d failure=%d\n",
		snap.Counters[goVerify.MetricVerificationSent],
		snap.Counters[goVerify.MetricVerificationSuccess],
		snap.Counters[goVerify.MetricVerificationFailure],
	)
}

func runPhase(ops, concurrency int, op func(i int) error) phaseStats {
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
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
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

// extractCode returns the first run of six digits in body.
func extractCode(body string) string {
	run := 0
	for i := 0; i < len(body); i++ {
		if body[i] >= '0' && body[i] <= '9' {
			run++
			if run == 6 {
				return body[i-5 : i+1]
			}
			continue
		}
		run = 0
	}
	return ""
}
