package stream

import (
	"fmt"
	"math"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/arzzra/camstream/pkg/fragment"
	"github.com/arzzra/camstream/pkg/transport"
)

// BytesPerPixel YUY2: 4 байта на 2 пикселя
const BytesPerPixel = 2

// Resolution разрешение кадра из фиксированного набора сенсора
type Resolution struct {
	Width  int
	Height int
}

// Поддерживаемые сенсором разрешения
var (
	Resolution320x240 = Resolution{Width: 320, Height: 240}
	Resolution160x120 = Resolution{Width: 160, Height: 120}
)

// SupportedResolutions возвращает набор разрешений. Первое используется по умолчанию.
func SupportedResolutions() []Resolution {
	return []Resolution{Resolution320x240, Resolution160x120}
}

// FrameSize возвращает размер кадра YUY2 в байтах
func (r Resolution) FrameSize() int {
	return r.Width * r.Height * BytesPerPixel
}

// Valid проверяет, что разрешение входит в поддерживаемый набор
func (r Resolution) Valid() bool {
	for _, s := range SupportedResolutions() {
		if s == r {
			return true
		}
	}
	return false
}

// String возвращает разрешение в виде "320x240"
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// MarshalText для JSON и TOML
func (r Resolution) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText для JSON и TOML
func (r *Resolution) UnmarshalText(text []byte) error {
	parsed, err := ParseResolution(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseResolution разбирает строку вида "320x240"
func ParseResolution(s string) (Resolution, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return Resolution{}, fmt.Errorf("некорректное разрешение %q", s)
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil {
		return Resolution{}, fmt.Errorf("некорректное разрешение %q", s)
	}
	r := Resolution{Width: w, Height: h}
	if !r.Valid() {
		return Resolution{}, fmt.Errorf("разрешение %s не поддерживается сенсором", r)
	}
	return r, nil
}

// Параметры масштаба отображения
const (
	DefaultScalePercent = 25
	MinScalePercent     = 10
	MaxScalePercent     = 100
	MinScale            = 1
	MaxScale            = 8
	scaleStepPercent    = 12.5
)

// Config конфигурация контроллера сессии и горутины приема
type Config struct {
	// Сетевые настройки
	BindHost         string        // Адрес для bind локального порта ("0.0.0.0" по умолчанию)
	ReceiveTimeout   time.Duration // Таймаут одного чтения сокета
	BufferSize       int           // Буфер чтения одной датаграммы
	SocketRecvBuffer int           // SO_RCVBUF
	DSCP             int           // DSCP для управляющих датаграмм

	// Горутина приема
	CommandTimeout time.Duration // Максимальное ожидание подтверждения команды

	// Сборка кадров
	AssemblyMode fragment.Mode
	StaleAfter   time.Duration

	// Оценка частоты кадров
	RateWindow int     // Число усредняемых отсчетов
	DefaultFPS float64 // Оценка до первого отсчета

	// Разрешение при старте
	Resolution Resolution
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		BindHost:         "0.0.0.0",
		ReceiveTimeout:   transport.DefaultReceiveTimeout,
		BufferSize:       transport.DefaultBufferSize,
		SocketRecvBuffer: transport.DefaultSocketRecvBuffer,
		DSCP:             transport.DSCPAssuredForwarding,
		CommandTimeout:   2 * time.Second,
		AssemblyMode:     fragment.ModeGenerational,
		StaleAfter:       fragment.DefaultStaleAfter,
		RateWindow:       DefaultRateWindow,
		DefaultFPS:       DefaultFPS,
		Resolution:       Resolution320x240,
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.BindHost != "" {
		if _, err := netip.ParseAddr(c.BindHost); err != nil {
			return fmt.Errorf("некорректный адрес bind %q: %w", c.BindHost, err)
		}
	}
	if c.ReceiveTimeout <= 0 {
		return fmt.Errorf("таймаут приема должен быть положительным")
	}
	if c.CommandTimeout < c.ReceiveTimeout {
		return fmt.Errorf("таймаут команды (%v) должен быть не меньше таймаута приема (%v)",
			c.CommandTimeout, c.ReceiveTimeout)
	}
	if c.BufferSize < fragment.MaxDatagramSize {
		return fmt.Errorf("буфер чтения %d меньше максимальной датаграммы %d",
			c.BufferSize, fragment.MaxDatagramSize)
	}
	if c.SocketRecvBuffer < 0 {
		return fmt.Errorf("размер буфера сокета не может быть отрицательным")
	}
	if c.DSCP < 0 || c.DSCP > 63 {
		return fmt.Errorf("DSCP должен быть в диапазоне 0-63")
	}
	if c.AssemblyMode != fragment.ModeGenerational && c.AssemblyMode != fragment.ModeLegacyMerge {
		return fmt.Errorf("неизвестный режим сборки: %d", c.AssemblyMode)
	}
	if c.StaleAfter < 0 {
		return fmt.Errorf("время устаревания не может быть отрицательным")
	}
	if c.RateWindow < 1 {
		return fmt.Errorf("окно оценки частоты должно содержать хотя бы один отсчет")
	}
	if c.DefaultFPS <= 0 {
		return fmt.Errorf("начальная оценка частоты должна быть положительной")
	}
	if !c.Resolution.Valid() {
		return fmt.Errorf("разрешение %s не поддерживается", c.Resolution)
	}
	return nil
}

// Copy создает копию конфигурации
func (c *Config) Copy() *Config {
	cp := *c
	return &cp
}

// transportConfig строит конфигурацию сокета для сессии
func (c *Config) transportConfig(sc SessionConfig) transport.Config {
	tc := transport.DefaultConfig()
	tc.LocalAddr = net.JoinHostPort(c.BindHost, strconv.Itoa(sc.LocalPort))
	tc.RemoteAddr = sc.RemoteAddr()
	tc.ReceiveTimeout = c.ReceiveTimeout
	tc.BufferSize = c.BufferSize
	tc.SocketRecvBuffer = c.SocketRecvBuffer
	tc.DSCP = c.DSCP
	return tc
}

// ConnectRequest параметры подключения в том виде, в каком их вводит пользователь
type ConnectRequest struct {
	RemoteIP     string `json:"remote_ip"`
	RemotePort   string `json:"remote_port"`
	LocalPort    string `json:"local_port"`
	ScalePercent string `json:"scale_percent"`
}

// SessionConfig проверенные параметры сессии. Создается один раз при подключении.
type SessionConfig struct {
	RemoteIP     netip.Addr
	RemotePort   int
	LocalPort    int
	ScalePercent int
	Scale        int
}

// RemoteAddr возвращает адрес сенсора в виде host:port
func (s SessionConfig) RemoteAddr() string {
	return netip.AddrPortFrom(s.RemoteIP, uint16(s.RemotePort)).String()
}

// ParseConnectRequest проверяет параметры подключения.
// Адрес должен быть IPv4 в точечной нотации, порты в диапазоне [1, 65535].
// Нечисловой масштаб заменяется на 25%, затем ограничивается [10, 100].
func ParseConnectRequest(req ConnectRequest) (SessionConfig, error) {
	ip, err := parseDottedQuad(req.RemoteIP)
	if err != nil {
		return SessionConfig{}, newError(ErrorCodeInvalidInput, "", "некорректный IP адрес", err,
			"remote_ip", req.RemoteIP)
	}

	remotePort, err := parsePort(req.RemotePort)
	if err != nil {
		return SessionConfig{}, newError(ErrorCodeInvalidInput, "", "некорректный удаленный порт", err,
			"remote_port", req.RemotePort)
	}

	localPort, err := parsePort(req.LocalPort)
	if err != nil {
		return SessionConfig{}, newError(ErrorCodeInvalidInput, "", "некорректный локальный порт", err,
			"local_port", req.LocalPort)
	}

	pct := ParseScalePercent(req.ScalePercent)
	return SessionConfig{
		RemoteIP:     ip,
		RemotePort:   remotePort,
		LocalPort:    localPort,
		ScalePercent: pct,
		Scale:        ScaleFromPercent(pct),
	}, nil
}

func parseDottedQuad(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%q не является IPv4 адресом", s)
	}
	return addr, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("порт %q не является числом", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("порт %d вне диапазона 1-65535", port)
	}
	return port, nil
}

// ParseScalePercent разбирает масштаб в процентах. Ошибка разбора дает 25%.
func ParseScalePercent(s string) int {
	pct, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		pct = DefaultScalePercent
	}
	return clampInt(pct, MinScalePercent, MaxScalePercent)
}

// ScaleFromPercent переводит проценты в целый множитель отображения 1..8
func ScaleFromPercent(pct int) int {
	scale := int(math.Round(float64(pct) / scaleStepPercent))
	return clampInt(scale, MinScale, MaxScale)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
