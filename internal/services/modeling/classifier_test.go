package modeling

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"
)

// separable builds windows whose label is decided by the sign of the first
// feature on the newest row.
func separable(n, seqLen, dim int, seed int64) ([][][]float64, []float64) {
	r := rand.New(rand.NewSource(seed))
	xs := make([][][]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		w := make([][]float64, seqLen)
		for t := range w {
			row := make([]float64, dim)
			for j := range row {
				row[j] = r.NormFloat64()
			}
			w[t] = row
		}
		if w[seqLen-1][0] > 0 {
			ys[i] = 1
		}
		xs[i] = w
	}
	return xs, ys
}

func trainConfig() TrainConfig {
	return TrainConfig{Epochs: 40, BatchSize: 16, LearningRate: 0.5, Patience: 5, Seed: 7}
}

func TestClassifierLearnsSeparableData(t *testing.T) {
	for _, mt := range []ModelType{LSTM, GRU, Transformer} {
		t.Run(string(mt), func(t *testing.T) {
			p, err := NewPredictor(mt, trainConfig())
			if err != nil {
				t.Fatalf("new predictor: %v", err)
			}
			x, y := separable(400, 8, 3, 1)
			xv, yv := separable(100, 8, 3, 2)

			res, err := p.Train(context.Background(), x, y, xv, yv)
			if err != nil {
				t.Fatalf("train: %v", err)
			}
			if res.ValAccuracy < 0.85 {
				t.Fatalf("val accuracy %.3f too low", res.ValAccuracy)
			}
			if len(res.History) != res.Epochs {
				t.Fatalf("history %d rows for %d epochs", len(res.History), res.Epochs)
			}
			for _, w := range xv[:10] {
				prob, err := p.PredictSingle(w)
				if err != nil || prob < 0 || prob > 1 {
					t.Fatalf("predict = %v, %v", prob, err)
				}
			}
		})
	}
}

func TestClassifierSaveLoad(t *testing.T) {
	p, _ := NewPredictor(GRU, trainConfig())
	x, y := separable(100, 5, 2, 3)
	if _, err := p.Train(context.Background(), x, y, nil, nil); err != nil {
		t.Fatalf("train: %v", err)
	}
	var buf bytes.Buffer
	if err := p.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw := buf.Bytes()

	q, _ := NewPredictor(GRU, trainConfig())
	if err := q.Load(bytes.NewReader(raw)); err != nil {
		t.Fatalf("load: %v", err)
	}
	a, _ := p.PredictSingle(x[0])
	b, _ := q.PredictSingle(x[0])
	if a != b {
		t.Fatalf("prediction changed after reload: %v vs %v", a, b)
	}

	wrong, _ := NewPredictor(Transformer, trainConfig())
	if err := wrong.Load(bytes.NewReader(raw)); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}

func TestClassifierUntrained(t *testing.T) {
	p, _ := NewPredictor(LSTM, trainConfig())
	if _, err := p.PredictSingle([][]float64{{1}}); !errors.Is(err, ErrNoModel) {
		t.Fatalf("err = %v, want ErrNoModel", err)
	}
	if err := p.Save(&bytes.Buffer{}); !errors.Is(err, ErrNoModel) {
		t.Fatalf("save err = %v", err)
	}
}

func TestClassifierRejectsShape(t *testing.T) {
	p, _ := NewPredictor(LSTM, trainConfig())
	x, y := separable(20, 4, 2, 4)
	if _, err := p.Train(context.Background(), x, y, nil, nil); err != nil {
		t.Fatalf("train: %v", err)
	}
	if _, err := p.PredictSingle(x[0][:3]); err == nil {
		t.Fatalf("expected window length error")
	}
	if _, err := p.Train(context.Background(), x, y[:3], nil, nil); err == nil {
		t.Fatalf("expected target count error")
	}
}

func TestClassifierHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, _ := NewPredictor(LSTM, trainConfig())
	x, y := separable(20, 4, 2, 5)
	if _, err := p.Train(ctx, x, y, nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestParseModelType(t *testing.T) {
	for _, tag := range []string{"lstm", "GRU", " transformer "} {
		if _, err := ParseModelType(tag); err != nil {
			t.Fatalf("%q rejected: %v", tag, err)
		}
	}
	_, err := ParseModelType("cnn")
	var ute *UnsupportedModelTypeError
	if !errors.As(err, &ute) || ute.Tag != "cnn" {
		t.Fatalf("err = %v, want UnsupportedModelTypeError naming cnn", err)
	}
}

func TestDetermineSignal(t *testing.T) {
	cases := []struct {
		p    float64
		kind string
		conf float64
	}{
		{0.75, "long", 50},
		{0.5, "neutral", 0},
		{0.1, "short", 80},
		{0.6, "long", 20},
		{0.4, "short", 20},
		{0.55, "neutral", 10},
		{1, "long", 100},
		{0.123456, "short", 75.31},
	}
	for _, c := range cases {
		kind, conf := DetermineSignal(c.p, 0.6, 0.4)
		if string(kind) != c.kind || conf != c.conf {
			t.Errorf("p=%v: got %s/%v, want %s/%v", c.p, kind, conf, c.kind, c.conf)
		}
	}
}
