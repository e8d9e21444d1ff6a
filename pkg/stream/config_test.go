package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/camstream/pkg/fragment"
)

func TestParseConnectRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       ConnectRequest
		wantErr   bool
		wantScale int
		wantPct   int
	}{
		{"корректные параметры", ConnectRequest{"192.168.11.2", "5000", "5000", "25"}, false, 2, 25},
		{"не IP адрес", ConnectRequest{"not.an.ip", "5000", "5000", "25"}, true, 0, 0},
		{"IPv6 адрес", ConnectRequest{"::1", "5000", "5000", "25"}, true, 0, 0},
		{"неполный адрес", ConnectRequest{"192.168.11", "5000", "5000", "25"}, true, 0, 0},
		{"октет больше 255", ConnectRequest{"192.168.11.256", "5000", "5000", "25"}, true, 0, 0},
		{"удаленный порт 0", ConnectRequest{"10.0.0.1", "0", "5000", "25"}, true, 0, 0},
		{"локальный порт 65536", ConnectRequest{"10.0.0.1", "5000", "65536", "25"}, true, 0, 0},
		{"порт не число", ConnectRequest{"10.0.0.1", "abc", "5000", "25"}, true, 0, 0},
		{"масштаб не число", ConnectRequest{"10.0.0.1", "5000", "5001", "big"}, false, 2, 25},
		{"масштаб меньше минимума", ConnectRequest{"10.0.0.1", "5000", "5001", "1"}, false, 1, 10},
		{"масштаб больше максимума", ConnectRequest{"10.0.0.1", "5000", "5001", "400"}, false, 8, 100},
		{"пробелы вокруг значений", ConnectRequest{" 10.0.0.1 ", " 5000 ", "5001 ", " 50"}, false, 4, 50},
		{"граничные порты", ConnectRequest{"10.0.0.1", "1", "65535", "25"}, false, 2, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := ParseConnectRequest(tt.req)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)
				assert.True(t, HasErrorCode(err, ErrorCodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScale, sc.Scale)
			assert.Equal(t, tt.wantPct, sc.ScalePercent)
		})
	}
}

func TestScaleFromPercent(t *testing.T) {
	tests := []struct {
		pct   int
		scale int
	}{
		{10, 1},
		{18, 1},
		{19, 2},
		{25, 2},
		{37, 3},
		{50, 4},
		{75, 6},
		{100, 8},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.scale, ScaleFromPercent(tt.pct), "процент %d", tt.pct)
	}
}

func TestSessionConfigRemoteAddr(t *testing.T) {
	sc, err := ParseConnectRequest(ConnectRequest{"192.168.11.2", "5000", "5001", "25"})
	require.NoError(t, err)
	assert.Equal(t, "192.168.11.2:5000", sc.RemoteAddr())
	assert.Equal(t, 5001, sc.LocalPort)
}

func TestResolution(t *testing.T) {
	assert.Equal(t, 153600, Resolution320x240.FrameSize())
	assert.Equal(t, 38400, Resolution160x120.FrameSize())
	assert.Equal(t, Resolution320x240, SupportedResolutions()[0], "320x240 по умолчанию")

	res, err := ParseResolution("160x120")
	require.NoError(t, err)
	assert.Equal(t, Resolution160x120, res)

	res, err = ParseResolution(" 320X240 ")
	require.NoError(t, err)
	assert.Equal(t, Resolution320x240, res)

	_, err = ParseResolution("640x480")
	assert.Error(t, err, "произвольные разрешения не поддерживаются")

	_, err = ParseResolution("wide")
	assert.Error(t, err)

	text, err := Resolution160x120.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "160x120", string(text))

	var r Resolution
	require.NoError(t, r.UnmarshalText([]byte("320x240")))
	assert.Equal(t, Resolution320x240, r)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"по умолчанию", func(c *Config) {}, false},
		{"режим слияния", func(c *Config) { c.AssemblyMode = fragment.ModeLegacyMerge }, false},
		{"некорректный bind", func(c *Config) { c.BindHost = "localhost:1" }, true},
		{"нулевой таймаут приема", func(c *Config) { c.ReceiveTimeout = 0 }, true},
		{"таймаут команды меньше таймаута приема", func(c *Config) { c.CommandTimeout = 10 * time.Millisecond }, true},
		{"маленький буфер", func(c *Config) { c.BufferSize = 512 }, true},
		{"пустое окно частоты", func(c *Config) { c.RateWindow = 0 }, true},
		{"неподдерживаемое разрешение", func(c *Config) { c.Resolution = Resolution{640, 480} }, true},
		{"неизвестный режим сборки", func(c *Config) { c.AssemblyMode = fragment.Mode(7) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestConfigCopy(t *testing.T) {
	cfg := DefaultConfig()
	cp := cfg.Copy()
	cp.RateWindow = 5
	assert.Equal(t, DefaultRateWindow, cfg.RateWindow, "копия не должна менять оригинал")
}
