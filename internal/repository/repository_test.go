package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	"FinSignal/internal/testutil"
	"FinSignal/pkg/logger"
)

func TestSQLiteRegistryRecordAndRecent(t *testing.T) {
	r, err := NewSQLiteModelRegistry(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"20240501_120000", "20240501_120001", "20240501_120002"} {
		v := models.ModelVersion{
			VersionID: id, RunID: "run-" + id, ModelType: "lstm", ModelPath: "/m/" + id,
			TrainedAt: base, ValLoss: 0.5, ValAcc: 0.6, Samples: 100,
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := r.Record(ctx, v); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	// upsert keeps a single row
	if err := r.Record(ctx, models.ModelVersion{VersionID: "20240501_120000", RunID: "rerun", ModelType: "gru", ModelPath: "/m/x", RecordedAt: base}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := r.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("rows = %d", len(got))
	}
	if got[0].VersionID != "20240501_120002" || got[2].RunID != "rerun" {
		t.Fatalf("unexpected order %+v", got)
	}
	if !got[0].TrainedAt.Equal(base) {
		t.Fatalf("trained_at round trip: %v", got[0].TrainedAt)
	}

	if err := r.Remove(ctx, "20240501_120001"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := r.Remove(ctx, "missing"); err != nil {
		t.Fatalf("remove unknown: %v", err)
	}
	got, _ = r.Recent(ctx, 1)
	if len(got) != 1 || got[0].VersionID != "20240501_120002" {
		t.Fatalf("limit not applied: %+v", got)
	}
}

func TestSQLiteRegistryRejectsEmptyVersion(t *testing.T) {
	r, err := NewSQLiteModelRegistry(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	if err := r.Record(context.Background(), models.ModelVersion{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSQLiteRegistryKeepsZeroTrainedAt(t *testing.T) {
	r, err := NewSQLiteModelRegistry(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	ctx := context.Background()
	recorded := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := r.Record(ctx, models.ModelVersion{VersionID: "20240501_120000", ModelType: "lstm", RecordedAt: recorded}); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := r.Recent(ctx, 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("recent: %v %v", got, err)
	}
	if !got[0].TrainedAt.IsZero() {
		t.Fatalf("trained_at = %v, want zero", got[0].TrainedAt)
	}
	if !got[0].RecordedAt.Equal(recorded) {
		t.Fatalf("recorded_at = %v", got[0].RecordedAt)
	}
}

type fakeProducer struct {
	keys   []string
	values []interface{}
	err    error
	closed bool
}

func (f *fakeProducer) Publish(_ context.Context, key []byte, value interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, string(key))
	f.values = append(f.values, value)
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

type countSent struct{ n map[string]int }

func (c *countSent) RecordMessageSent(backend, symbol string) { c.n[backend+"/"+symbol]++ }

func TestKafkaSignalPublisher(t *testing.T) {
	p := &fakeProducer{}
	c := &countSent{n: map[string]int{}}
	pub := NewKafkaSignalPublisher(p, c)

	s := models.Signal{Symbol: "btcusdt", Signal: models.SignalLong, Confidence: 40, Probability: 0.7}
	if err := pub.Publish(context.Background(), s); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(p.keys) != 1 || p.keys[0] != "BTCUSDT" {
		t.Fatalf("keys = %v", p.keys)
	}
	if c.n["kafka/BTCUSDT"] != 1 {
		t.Fatalf("sent counter = %v", c.n)
	}
	if err := pub.Publish(context.Background(), models.Signal{}); err == nil {
		t.Fatalf("expected error for missing symbol")
	}

	p.err = errors.New("broker down")
	if err := pub.Publish(context.Background(), s); err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if c.n["kafka/BTCUSDT"] != 1 {
		t.Fatalf("failed publish counted")
	}
	_ = pub.Close()
	if !p.closed {
		t.Fatalf("producer not closed")
	}
}

func TestMemoryFeatureStore(t *testing.T) {
	s := NewMemoryFeatureStore(100)
	ctx := context.Background()
	candles := testutil.Candles(150, 1)

	if err := s.Append(context.Background(), "test", domrepo.TF1m, candles[:80]); err != nil {
		t.Fatalf("append: %v", err)
	}
	// overlap replaces, the limit trims the oldest
	if err := s.Append(context.Background(), "TEST", domrepo.TF1m, candles[70:]); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, _ := s.GetLatestNCandles(ctx, "TEST", 1000, domrepo.TF1m)
	if len(got) != 100 {
		t.Fatalf("len = %d", len(got))
	}
	if !got[0].Timestamp.Equal(candles[50].Timestamp) || !got[99].Timestamp.Equal(candles[149].Timestamp) {
		t.Fatalf("unexpected window %v .. %v", got[0].Timestamp, got[99].Timestamp)
	}

	last, _ := s.GetLatestNCandles(ctx, "test", 5, domrepo.TF1m)
	if len(last) != 5 || !last[4].Timestamp.Equal(candles[149].Timestamp) {
		t.Fatalf("latest 5 wrong")
	}
	rng, _ := s.GetCandles(ctx, "TEST", candles[60].Timestamp, candles[69].Timestamp, domrepo.TF1m)
	if len(rng) != 10 {
		t.Fatalf("range len = %d", len(rng))
	}
	if other, _ := s.GetLatestNCandles(ctx, "TEST", 10, domrepo.TF5m); len(other) != 0 {
		t.Fatalf("timeframes must not mix")
	}

	bad := []models.Candle{{Timestamp: time.Now(), Open: 1, High: 1, Low: 2, Close: 1}}
	if err := s.Append(context.Background(), "TEST", domrepo.TF1m, bad); !errors.Is(err, models.ErrInvalidCandle) {
		t.Fatalf("expected invalid candle, got %v", err)
	}
	if err := s.Append(context.Background(), "TEST", "1h", candles[:1]); err == nil {
		t.Fatalf("expected timeframe error")
	}
}

func TestCandleSchema(t *testing.T) {
	stmts := CandleSchema("finsignal")
	if len(stmts) != 4 {
		t.Fatalf("statements = %d", len(stmts))
	}
	for _, tf := range []string{"1s", "1m", "5m"} {
		found := false
		for _, s := range stmts {
			if strings.Contains(s, "finsignal.candles_"+tf) {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing table for %s", tf)
		}
	}
}

func TestCandleInsert(t *testing.T) {
	batch := testutil.Candles(3, 4)
	q, args := candleInsert("finsignal.candles_1m", "BTCUSDT", batch)
	if !strings.HasPrefix(q, "INSERT INTO finsignal.candles_1m (ts, symbol, open, high, low, close, volume) VALUES") {
		t.Fatalf("unexpected statement %q", q)
	}
	if n := strings.Count(q, "(?, ?, ?, ?, ?, ?, ?)"); n != 3 {
		t.Fatalf("value groups = %d", n)
	}
	if len(args) != 21 || args[1] != "BTCUSDT" || args[7+5] != batch[1].Close {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestCHAppendValidatesBeforeWriting(t *testing.T) {
	// no connection: every case below must fail or return before touching the db
	s := &CHFeatureStore{database: "finsignal", l: logger.Nop()}
	ctx := context.Background()

	bad := []models.Candle{{Timestamp: time.Now(), Open: 1, High: 1, Low: 2, Close: 1}}
	if err := s.Append(ctx, "BTCUSDT", domrepo.TF1m, bad); !errors.Is(err, models.ErrInvalidCandle) {
		t.Fatalf("expected invalid candle, got %v", err)
	}
	if err := s.Append(ctx, "BTCUSDT", "1h", testutil.Candles(1, 1)); err == nil {
		t.Fatalf("expected timeframe error")
	}
	if err := s.Append(ctx, "BTCUSDT", domrepo.TF1m, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}
