// Package indicators enriches an OHLCV frame with technical indicator columns.
package indicators

import (
	"fmt"
	"strconv"

	"FinSignal/pkg/config"
	"FinSignal/pkg/frame"
	"FinSignal/pkg/logger"
)

// Engine computes every indicator family. It holds no state between calls.
type Engine struct {
	cfg config.IndicatorConfig
	log *logger.Logger
}

func NewEngine(cfg config.IndicatorConfig, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{cfg: cfg, log: log}
}

type step struct {
	name    string
	columns []string
	run     func(f *frame.Frame) (map[string][]float64, error)
}

// CalculateAll returns a copy of f with every indicator column added.
// A failing family contributes all-NaN columns and is logged.
func (e *Engine) CalculateAll(f *frame.Frame) *frame.Frame {
	out := f.Clone()
	for _, s := range e.steps() {
		e.apply(out, s)
	}
	return out
}

func (e *Engine) steps() []step {
	c := e.cfg
	emaCols := make([]string, len(c.EMAPeriods))
	for i, p := range c.EMAPeriods {
		emaCols[i] = "ema_" + strconv.Itoa(p)
	}
	return []step{
		{"momentum", []string{"rsi"}, e.momentum},
		{"trend_convergence", []string{"macd", "macd_signal", "macd_histogram"}, e.trendConvergence},
		{"trend_lines", emaCols, e.trendLines},
		{"volatility_bands", []string{"bb_middle", "bb_upper", "bb_lower", "bb_width", "bb_position"}, e.volatilityBands},
		{"volume", []string{"volume_sma", "vwap", "obv", "volume_roc"}, e.volume},
		{"stochastic", []string{"stoch_k", "stoch_d"}, e.stochastic},
		{"true_range", []string{"atr"}, e.trueRange},
		{"price_action", []string{"local_high", "local_low", "breakout_up", "breakout_down", "doji", "hammer"}, e.priceAction},
	}
}

func (e *Engine) apply(f *frame.Frame, s step) {
	cols, err := safeRun(s, f)
	if err == nil {
		for _, name := range s.columns {
			v, ok := cols[name]
			if !ok {
				err = fmt.Errorf("column %s not produced", name)
				break
			}
			if len(v) != f.Len() {
				err = fmt.Errorf("column %s: length %d, want %d", name, len(v), f.Len())
				break
			}
		}
	}
	if err != nil {
		e.log.Error("indicator family failed",
			logger.String("family", s.name),
			logger.Error(err),
		)
		for _, name := range s.columns {
			_ = f.Set(name, frame.NaNs(f.Len()))
		}
		return
	}
	for _, name := range s.columns {
		_ = f.Set(name, cols[name])
	}
}

func safeRun(s step, f *frame.Frame) (cols map[string][]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.run(f)
}

func require(f *frame.Frame, names ...string) error {
	for _, n := range names {
		if !f.Has(n) {
			return fmt.Errorf("missing column %s", n)
		}
	}
	return nil
}

func (e *Engine) momentum(f *frame.Frame) (map[string][]float64, error) {
	if err := require(f, frame.Close); err != nil {
		return nil, err
	}
	return map[string][]float64{"rsi": RSI(f.Col(frame.Close), e.cfg.RSIPeriod)}, nil
}

func (e *Engine) trendConvergence(f *frame.Frame) (map[string][]float64, error) {
	if err := require(f, frame.Close); err != nil {
		return nil, err
	}
	line, sig, hist := MACD(f.Col(frame.Close), e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)
	return map[string][]float64{"macd": line, "macd_signal": sig, "macd_histogram": hist}, nil
}

func (e *Engine) trendLines(f *frame.Frame) (map[string][]float64, error) {
	if err := require(f, frame.Close); err != nil {
		return nil, err
	}
	out := make(map[string][]float64, len(e.cfg.EMAPeriods))
	for _, p := range e.cfg.EMAPeriods {
		out["ema_"+strconv.Itoa(p)] = frame.EMA(f.Col(frame.Close), p)
	}
	return out, nil
}

func (e *Engine) volatilityBands(f *frame.Frame) (map[string][]float64, error) {
	if err := require(f, frame.Close); err != nil {
		return nil, err
	}
	b := Bollinger(f.Col(frame.Close), e.cfg.BBPeriod, e.cfg.BBStd)
	return map[string][]float64{
		"bb_middle": b.Middle, "bb_upper": b.Upper, "bb_lower": b.Lower,
		"bb_width": b.Width, "bb_position": b.Position,
	}, nil
}

func (e *Engine) volume(f *frame.Frame) (map[string][]float64, error) {
	if err := require(f, frame.High, frame.Low, frame.Close, frame.Volume); err != nil {
		return nil, err
	}
	h, l, c, v := f.Col(frame.High), f.Col(frame.Low), f.Col(frame.Close), f.Col(frame.Volume)
	return map[string][]float64{
		"volume_sma": frame.SMA(v, e.cfg.VolumeSMAPeriod),
		"vwap":       VWAP(h, l, c, v),
		"obv":        OBV(c, v),
		"volume_roc": ROC(v, e.cfg.VolumeROCPeriod),
	}, nil
}

func (e *Engine) stochastic(f *frame.Frame) (map[string][]float64, error) {
	if err := require(f, frame.High, frame.Low, frame.Close); err != nil {
		return nil, err
	}
	k, d := Stochastic(f.Col(frame.High), f.Col(frame.Low), f.Col(frame.Close), e.cfg.StochKPeriod, e.cfg.StochDPeriod)
	return map[string][]float64{"stoch_k": k, "stoch_d": d}, nil
}

func (e *Engine) trueRange(f *frame.Frame) (map[string][]float64, error) {
	if err := require(f, frame.High, frame.Low, frame.Close); err != nil {
		return nil, err
	}
	return map[string][]float64{"atr": ATR(f.Col(frame.High), f.Col(frame.Low), f.Col(frame.Close), e.cfg.ATRPeriod)}, nil
}

func (e *Engine) priceAction(f *frame.Frame) (map[string][]float64, error) {
	if err := require(f, frame.Open, frame.High, frame.Low, frame.Close); err != nil {
		return nil, err
	}
	p := PriceAction(f.Col(frame.Open), f.Col(frame.High), f.Col(frame.Low), f.Col(frame.Close),
		e.cfg.PatternWindow, e.cfg.BreakoutWindow)
	return map[string][]float64{
		"local_high": p.LocalHigh, "local_low": p.LocalLow,
		"breakout_up": p.BreakoutUp, "breakout_down": p.BreakoutDown,
		"doji": p.Doji, "hammer": p.Hammer,
	}, nil
}
