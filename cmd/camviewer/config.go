package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/arzzra/camstream/pkg/api"
	"github.com/arzzra/camstream/pkg/fragment"
	"github.com/arzzra/camstream/pkg/sink"
	"github.com/arzzra/camstream/pkg/stream"
)

// fileConfig содержимое config.toml
type fileConfig struct {
	Sensor  sensorSection  `toml:"sensor"`
	Viewer  viewerSection  `toml:"viewer"`
	Output  outputSection  `toml:"output"`
	API     apiSection     `toml:"api"`
	Metrics metricsSection `toml:"metrics"`
	Log     logSection     `toml:"log"`
}

// sensorSection параметры подключения, те же поля, что вводит пользователь
type sensorSection struct {
	RemoteIP     string `toml:"remote_ip"`
	RemotePort   string `toml:"remote_port"`
	LocalPort    string `toml:"local_port"`
	ScalePercent string `toml:"scale_percent"`
	AutoConnect  bool   `toml:"auto_connect"`
	AutoStart    bool   `toml:"auto_start"`
}

type viewerSection struct {
	BindHost         string            `toml:"bind_host"`
	ReceiveTimeout   time.Duration     `toml:"receive_timeout"`
	SocketRecvBuffer int               `toml:"socket_recv_buffer"`
	DSCP             int               `toml:"dscp"`
	CommandTimeout   time.Duration     `toml:"command_timeout"`
	AssemblyMode     string            `toml:"assembly_mode"`
	StaleAfter       time.Duration     `toml:"stale_after"`
	RateWindow       int               `toml:"rate_window"`
	DefaultFPS       float64           `toml:"default_fps"`
	Resolution       stream.Resolution `toml:"resolution"`
}

type outputSection struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	Window  bool   `toml:"window"`
}

type apiSection struct {
	Enabled        bool     `toml:"enabled"`
	ListenAddr     string   `toml:"listen_addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type metricsSection struct {
	Enabled bool `toml:"enabled"`
}

type logSection struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// defaultFileConfig значения для отсутствующих в файле полей
func defaultFileConfig() fileConfig {
	sc := stream.DefaultConfig()
	so := sink.DefaultOptions()
	return fileConfig{
		Sensor: sensorSection{
			RemoteIP:     "192.168.11.2",
			RemotePort:   "5000",
			LocalPort:    "5000",
			ScalePercent: "25",
		},
		Viewer: viewerSection{
			BindHost:         sc.BindHost,
			ReceiveTimeout:   sc.ReceiveTimeout,
			SocketRecvBuffer: sc.SocketRecvBuffer,
			DSCP:             sc.DSCP,
			CommandTimeout:   sc.CommandTimeout,
			AssemblyMode:     sc.AssemblyMode.String(),
			StaleAfter:       sc.StaleAfter,
			RateWindow:       sc.RateWindow,
			DefaultFPS:       sc.DefaultFPS,
			Resolution:       sc.Resolution,
		},
		Output: outputSection{
			Backend: string(so.Backend),
			Dir:     so.Dir,
		},
		API: apiSection{
			Enabled:    true,
			ListenAddr: api.DefaultConfig().ListenAddr,
		},
		Metrics: metricsSection{Enabled: true},
		Log:     logSection{Level: "info"},
	}
}

// loadConfig читает файл поверх значений по умолчанию. Пустой путь
// оставляет значения по умолчанию.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("чтение %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("неизвестные ключи в %s: %v", path, undecoded)
	}
	return cfg, nil
}

// streamConfig строит конфигурацию контроллера
func (c fileConfig) streamConfig() (*stream.Config, error) {
	mode, err := fragment.ParseMode(c.Viewer.AssemblyMode)
	if err != nil {
		return nil, err
	}

	sc := stream.DefaultConfig()
	sc.BindHost = c.Viewer.BindHost
	sc.ReceiveTimeout = c.Viewer.ReceiveTimeout
	sc.SocketRecvBuffer = c.Viewer.SocketRecvBuffer
	sc.DSCP = c.Viewer.DSCP
	sc.CommandTimeout = c.Viewer.CommandTimeout
	sc.AssemblyMode = mode
	sc.StaleAfter = c.Viewer.StaleAfter
	sc.RateWindow = c.Viewer.RateWindow
	sc.DefaultFPS = c.Viewer.DefaultFPS
	sc.Resolution = c.Viewer.Resolution

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func (c fileConfig) connectRequest() stream.ConnectRequest {
	return stream.ConnectRequest{
		RemoteIP:     c.Sensor.RemoteIP,
		RemotePort:   c.Sensor.RemotePort,
		LocalPort:    c.Sensor.LocalPort,
		ScalePercent: c.Sensor.ScalePercent,
	}
}

func (c fileConfig) sinkOptions() sink.Options {
	opts := sink.DefaultOptions()
	opts.Backend = sink.Backend(c.Output.Backend)
	opts.Dir = c.Output.Dir
	opts.Window = c.Output.Window
	return opts
}

func (c fileConfig) apiConfig() api.Config {
	return api.Config{
		ListenAddr:     c.API.ListenAddr,
		AllowedOrigins: c.API.AllowedOrigins,
	}
}
