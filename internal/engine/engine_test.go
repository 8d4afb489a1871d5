// internal/engine/engine_test.go
package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/clickrender/internal/config"
	"github.com/xkilldash9x/clickrender/internal/engine/cdpengine"
	"github.com/xkilldash9x/clickrender/internal/engine/pwengine"
	"github.com/xkilldash9x/clickrender/internal/engine/rodengine"
)

func TestNew(t *testing.T) {
	tests := []struct {
		engine string
		want   interface{}
	}{
		{engine: "", want: &cdpengine.Launcher{}},
		{engine: config.EngineChromedp, want: &cdpengine.Launcher{}},
		{engine: "ChromeDP", want: &cdpengine.Launcher{}},
		{engine: config.EngineRod, want: &rodengine.Launcher{}},
		{engine: config.EnginePlaywright, want: &pwengine.Launcher{}},
	}

	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			cfg := config.NewDefaultConfig().Browser
			cfg.Engine = tt.engine

			l, err := New(cfg, zaptest.NewLogger(t))
			require.NoError(t, err)
			assert.IsType(t, tt.want, l)
		})
	}
}

func TestNew_UnknownEngine(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser
	cfg.Engine = "webkit"

	l, err := New(cfg, zaptest.NewLogger(t))
	assert.Nil(t, l)
	assert.ErrorContains(t, err, `unknown browser engine "webkit"`)
}
