package modeling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"

	"FinSignal/internal/domain/models"
)

// poolFunc reduces a window to a fixed-width summary of its rows.
type poolFunc func(window [][]float64) []float64

// recurrentPool is an exponentially decayed average over time where the
// newest row has weight one.
func recurrentPool(decay float64) poolFunc {
	return func(window [][]float64) []float64 {
		dim := len(window[0])
		out := make([]float64, dim)
		w, norm := 1.0, 0.0
		for t := len(window) - 1; t >= 0; t-- {
			for j, v := range window[t] {
				out[j] += w * v
			}
			norm += w
			w *= decay
		}
		for j := range out {
			out[j] /= norm
		}
		return out
	}
}

// attentionPool weights rows by softmax similarity to the newest row.
func attentionPool(window [][]float64) []float64 {
	dim := len(window[0])
	last := window[len(window)-1]
	scale := math.Sqrt(float64(dim))
	scores := make([]float64, len(window))
	maxScore := math.Inf(-1)
	for t, row := range window {
		s := 0.0
		for j, v := range row {
			s += v * last[j]
		}
		scores[t] = s / scale
		maxScore = math.Max(maxScore, scores[t])
	}
	total := 0.0
	for t := range scores {
		scores[t] = math.Exp(scores[t] - maxScore)
		total += scores[t]
	}
	out := make([]float64, dim)
	for t, row := range window {
		a := scores[t] / total
		for j, v := range row {
			out[j] += a * v
		}
	}
	return out
}

// SequenceClassifier pools each window over time, concatenates the pooled
// summary with the newest row and feeds a logistic head.
type SequenceClassifier struct {
	kind ModelType
	pool poolFunc
	cfg  TrainConfig

	seqLen   int
	inputDim int
	weights  []float64
	bias     float64
	result   *models.TrainingResult
}

func newSequenceClassifier(kind ModelType, pool poolFunc, cfg TrainConfig) *SequenceClassifier {
	if cfg.Epochs <= 0 {
		cfg.Epochs = 50
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.01
	}
	return &SequenceClassifier{kind: kind, pool: pool, cfg: cfg}
}

func (c *SequenceClassifier) Type() ModelType { return c.kind }

func (c *SequenceClassifier) features(window [][]float64) []float64 {
	z := c.pool(window)
	return append(z, window[len(window)-1]...)
}

func (c *SequenceClassifier) encode(x [][][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i, w := range x {
		if err := c.checkWindow(w); err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
		out[i] = c.features(w)
	}
	return out, nil
}

func (c *SequenceClassifier) checkWindow(w [][]float64) error {
	if len(w) != c.seqLen {
		return fmt.Errorf("window length %d, model expects %d", len(w), c.seqLen)
	}
	for _, row := range w {
		if len(row) != c.inputDim {
			return fmt.Errorf("row width %d, model expects %d", len(row), c.inputDim)
		}
	}
	return nil
}

// Train fits the head with mini-batch gradient descent on cross-entropy
// against soft targets. The best validation epoch is kept.
func (c *SequenceClassifier) Train(ctx context.Context, x [][][]float64, y []float64, xVal [][][]float64, yVal []float64) (*models.TrainingResult, error) {
	if len(x) == 0 || len(x) != len(y) || len(xVal) != len(yVal) {
		return nil, fmt.Errorf("train: %d windows, %d targets, %d/%d validation", len(x), len(y), len(xVal), len(yVal))
	}
	if len(x[0]) == 0 || len(x[0][0]) == 0 {
		return nil, errors.New("train: empty window")
	}
	c.seqLen, c.inputDim = len(x[0]), len(x[0][0])

	zTrain, err := c.encode(x)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	zVal, err := c.encode(xVal)
	if err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}

	rng := rand.New(rand.NewSource(c.cfg.Seed))
	dim := len(zTrain[0])
	c.weights = make([]float64, dim)
	for j := range c.weights {
		c.weights[j] = 0.01 * rng.NormFloat64()
	}
	c.bias = 0

	best := math.Inf(1)
	bestW, bestB := append([]float64(nil), c.weights...), c.bias
	stale := 0
	res := &models.TrainingResult{}
	order := rng.Perm(len(zTrain))
	grad := make([]float64, dim)

	for epoch := 1; epoch <= c.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < len(order); start += c.cfg.BatchSize {
			end := min(start+c.cfg.BatchSize, len(order))
			for j := range grad {
				grad[j] = 0
			}
			gb := 0.0
			for _, idx := range order[start:end] {
				g := c.prob(zTrain[idx]) - y[idx]
				for j, v := range zTrain[idx] {
					grad[j] += g * v
				}
				gb += g
			}
			n := float64(end - start)
			for j := range c.weights {
				c.weights[j] -= c.cfg.LearningRate * grad[j] / n
			}
			c.bias -= c.cfg.LearningRate * gb / n
		}

		m := models.EpochMetrics{Epoch: epoch}
		m.Loss, m.Accuracy = c.evaluate(zTrain, y)
		monitor := m.Loss
		if len(zVal) > 0 {
			m.ValLoss, m.ValAccuracy = c.evaluate(zVal, yVal)
			monitor = m.ValLoss
		}
		res.History = append(res.History, m)
		res.Epochs = epoch

		if monitor < best {
			best, stale = monitor, 0
			copy(bestW, c.weights)
			bestB = c.bias
			res.Loss, res.Accuracy, res.ValLoss, res.ValAccuracy = m.Loss, m.Accuracy, m.ValLoss, m.ValAccuracy
			continue
		}
		stale++
		if c.cfg.Patience > 0 && stale >= c.cfg.Patience {
			break
		}
	}

	c.weights, c.bias = bestW, bestB
	c.result = res
	return res, nil
}

func (c *SequenceClassifier) prob(z []float64) float64 {
	s := c.bias
	for j, v := range z {
		s += c.weights[j] * v
	}
	return sigmoid(s)
}

func (c *SequenceClassifier) evaluate(z [][]float64, y []float64) (loss, acc float64) {
	const eps = 1e-12
	hits := 0
	for i, row := range z {
		p := c.prob(row)
		loss -= y[i]*math.Log(p+eps) + (1-y[i])*math.Log(1-p+eps)
		if (p >= 0.5) == (y[i] >= 0.5) {
			hits++
		}
	}
	n := float64(len(z))
	return loss / n, float64(hits) / n
}

func (c *SequenceClassifier) PredictSingle(window [][]float64) (float64, error) {
	if c.weights == nil {
		return 0, ErrNoModel
	}
	if err := c.checkWindow(window); err != nil {
		return 0, err
	}
	return c.prob(c.features(window)), nil
}

type classifierSnapshot struct {
	Type     ModelType              `json:"type"`
	SeqLen   int                    `json:"sequence_length"`
	InputDim int                    `json:"input_dim"`
	Weights  []float64              `json:"weights"`
	Bias     float64                `json:"bias"`
	Result   *models.TrainingResult `json:"result,omitempty"`
}

func (c *SequenceClassifier) Save(w io.Writer) error {
	if c.weights == nil {
		return ErrNoModel
	}
	return json.NewEncoder(w).Encode(classifierSnapshot{
		Type: c.kind, SeqLen: c.seqLen, InputDim: c.inputDim,
		Weights: c.weights, Bias: c.bias, Result: c.result,
	})
}

func (c *SequenceClassifier) Load(r io.Reader) error {
	var s classifierSnapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return fmt.Errorf("decode model: %w", err)
	}
	if s.Type != c.kind {
		return fmt.Errorf("model file holds %s weights, expected %s", s.Type, c.kind)
	}
	if len(s.Weights) != 2*s.InputDim || s.SeqLen <= 0 {
		return fmt.Errorf("model file has %d weights for input width %d", len(s.Weights), s.InputDim)
	}
	c.seqLen, c.inputDim = s.SeqLen, s.InputDim
	c.weights, c.bias, c.result = s.Weights, s.Bias, s.Result
	return nil
}

func (c *SequenceClassifier) Summary() string {
	if c.weights == nil {
		return fmt.Sprintf("%s sequence classifier (untrained)", c.kind)
	}
	return fmt.Sprintf("%s sequence classifier: sequence_length=%d features=%d params=%d",
		c.kind, c.seqLen, c.inputDim, len(c.weights)+1)
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
