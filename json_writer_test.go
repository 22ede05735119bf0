package backtest

import (
	"testing"

	"github.com/etnz/backtest/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONObjectWriter(t *testing.T) {
	tests := []struct {
		name  string
		build func(w *jsonObjectWriter)
		want  string
	}{
		{"empty", func(w *jsonObjectWriter) {}, `{}`},
		{
			"insertion order",
			func(w *jsonObjectWriter) { w.Append("sharpe", 1.5).Append("label", "Portfolio").Append("n_days", 3) },
			`{"sharpe":1.5,"label":"Portfolio","n_days":3}`,
		},
		{
			"date keys",
			func(w *jsonObjectWriter) {
				w.Append(day0.Add(1).String(), 101.5).Append(day0.String(), 100)
			},
			`{"2024-01-02":101.5,"2024-01-01":100}`,
		},
		{
			"embedded fields in place",
			func(w *jsonObjectWriter) {
				w.Append("label", "AAPL").EmbedFrom(&Relative{Beta: 1.2}).Append("n_days", 10)
			},
			`{"label":"AAPL","alpha_ann":0,"beta":1.2,"info_ratio":0,"tracking_error":0,"up_capture":0,"down_capture":0,"n_days":10}`,
		},
		{"empty embed", func(w *jsonObjectWriter) { w.Append("a", 1).EmbedFrom(struct{}{}) }, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w jsonObjectWriter
			tt.build(&w)
			got, err := w.MarshalJSON()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
			assert.Equal(t, tt.want, string(got), "key order")
		})
	}
}

func TestJSONObjectWriterStickyError(t *testing.T) {
	var w jsonObjectWriter
	w.Append("curve", date.New(2024, 1, 1)).EmbedFrom([]float64{1, 2}).Append("after", 1)
	_, err := w.MarshalJSON()
	assert.ErrorContains(t, err, "cannot embed non object")

	w = jsonObjectWriter{}
	w.Append("fn", func() {})
	_, err = w.MarshalJSON()
	assert.Error(t, err)
}
